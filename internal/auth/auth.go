package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ignite/onboarding/internal/config"
	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/pkg/httpretry"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateCookie       = "oauth_state"

	// Dev-mode headers let local tooling act as a staff member without OAuth.
	DevEmailHeader = "X-Dev-Actor-Email"
	DevRoleHeader  = "X-Dev-Actor-Role"
)

// GoogleUserInfo represents the user info returned by Google
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	HD            string `json:"hd"` // Hosted domain (GSuite domain)
}

// AuthManager handles Google OAuth authentication for HR staff
type AuthManager struct {
	config       *config.AuthConfig
	oauth2Config *oauth2.Config
	sessions     SessionStore
	userInfoURL  string
	hrEmails     map[string]bool
	now          func() time.Time
}

// NewAuthManager creates a new authentication manager. The callback URL is
// cfg.RedirectURL, or baseURL + "/auth/callback" when unset.
func NewAuthManager(cfg *config.AuthConfig, baseURL string, sessions SessionStore) *AuthManager {
	redirect := cfg.RedirectURL
	if redirect == "" {
		redirect = strings.TrimRight(baseURL, "/") + "/auth/callback"
	}
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  redirect,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	hr := make(map[string]bool, len(cfg.HREmails))
	for _, e := range cfg.HREmails {
		hr[strings.ToLower(strings.TrimSpace(e))] = true
	}

	return &AuthManager{
		config:       cfg,
		oauth2Config: oauth2Config,
		sessions:     sessions,
		userInfoURL:  googleUserInfoURL,
		hrEmails:     hr,
		now:          time.Now,
	}
}

// randomID creates a random URL-safe identifier for states and sessions
func randomID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// roleFor decides the staff role for a verified email. With no HR list
// configured every allowed-domain user is HR.
func (am *AuthManager) roleFor(email string) domain.Role {
	if len(am.hrEmails) == 0 || am.hrEmails[strings.ToLower(email)] {
		return domain.RoleHR
	}
	return domain.RoleEmployee
}

func (am *AuthManager) domainAllowed(email string) bool {
	if am.config.AllowedDomain == "" {
		return true
	}
	parts := strings.Split(email, "@")
	return len(parts) == 2 && strings.EqualFold(parts[1], am.config.AllowedDomain)
}

// HandleLogin initiates the Google OAuth flow
func (am *AuthManager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomID()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if am.config.AllowedDomain != "" {
		opts = append(opts, oauth2.SetAuthURLParam("hd", am.config.AllowedDomain))
	}
	http.Redirect(w, r, am.oauth2Config.AuthCodeURL(state, opts...), http.StatusTemporaryRedirect)
}

// HandleCallback processes the OAuth callback from Google
func (am *AuthManager) HandleCallback(w http.ResponseWriter, r *http.Request) {
	sc, err := r.Cookie(stateCookie)
	if err != nil || r.URL.Query().Get("state") != sc.Value {
		log.Printf("Auth: invalid oauth state")
		http.Redirect(w, r, "/?error=invalid_state", http.StatusTemporaryRedirect)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		log.Printf("Auth: Google returned error: %s", errMsg)
		http.Redirect(w, r, "/?error=oauth_denied", http.StatusTemporaryRedirect)
		return
	}

	token, err := am.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		log.Printf("Auth: Failed to exchange code: %v", err)
		http.Redirect(w, r, "/?error=exchange_failed", http.StatusTemporaryRedirect)
		return
	}

	userInfo, err := am.getUserInfo(r.Context(), token)
	if err != nil {
		log.Printf("Auth: Failed to get user info: %v", err)
		http.Redirect(w, r, "/?error=userinfo_failed", http.StatusTemporaryRedirect)
		return
	}

	if !userInfo.VerifiedEmail || !am.domainAllowed(userInfo.Email) {
		log.Printf("Auth: Domain not allowed for %s", userInfo.ID)
		http.Redirect(w, r, "/?error=domain_not_allowed", http.StatusTemporaryRedirect)
		return
	}

	sessionID, err := randomID()
	if err != nil {
		log.Printf("Auth: Failed to generate session ID: %v", err)
		http.Redirect(w, r, "/?error=session_failed", http.StatusTemporaryRedirect)
		return
	}

	now := am.now()
	session := &Session{
		UserID:    userInfo.ID,
		Email:     userInfo.Email,
		Name:      userInfo.Name,
		Picture:   userInfo.Picture,
		Domain:    userInfo.HD,
		Role:      am.roleFor(userInfo.Email),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(am.config.CookieMaxAge) * time.Second),
	}
	if err := am.sessions.Save(r.Context(), sessionID, session); err != nil {
		log.Printf("Auth: Failed to save session: %v", err)
		http.Redirect(w, r, "/?error=session_failed", http.StatusTemporaryRedirect)
		return
	}

	log.Printf("Auth: staff user %s logged in as %s", userInfo.ID, session.Role)

	http.SetCookie(w, &http.Cookie{
		Name:     am.config.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   am.config.CookieMaxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// HandleLogout logs out the user
func (am *AuthManager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(am.config.CookieName); err == nil {
		if err := am.sessions.Delete(r.Context(), cookie.Value); err != nil {
			log.Printf("Auth: delete session: %v", err)
		}
	}

	http.SetCookie(w, &http.Cookie{Name: am.config.CookieName, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// HandleUserInfo returns the current staff member as JSON
func (am *AuthManager) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	actor := am.resolve(r)
	if actor == nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{"authenticated": false})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"authenticated": true,
		"user":          actor,
	})
}

// GetSession returns the session for the current request, or nil if not authenticated
func (am *AuthManager) GetSession(r *http.Request) *Session {
	cookie, err := r.Cookie(am.config.CookieName)
	if err != nil {
		return nil
	}
	session, err := am.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		log.Printf("Auth: session lookup failed: %v", err)
		return nil
	}
	return session
}

// resolve finds the actor for a request from its session, or from the dev
// headers when dev mode is on.
func (am *AuthManager) resolve(r *http.Request) *domain.Actor {
	if s := am.GetSession(r); s != nil {
		return s.Actor()
	}
	if !am.config.DevMode {
		return nil
	}
	email := strings.TrimSpace(r.Header.Get(DevEmailHeader))
	if email == "" {
		return nil
	}
	role := domain.Role(r.Header.Get(DevRoleHeader))
	if role == "" {
		role = domain.RoleHR
	}
	return &domain.Actor{ID: email, Email: email, Name: email, Role: role}
}

// Authenticate attaches the request's actor, if any, to its context.
func (am *AuthManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := am.resolve(r); actor != nil {
			r = r.WithContext(WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth is middleware that rejects requests without an actor.
// It must run after Authenticate.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getUserInfo fetches the user's profile with the OAuth token
func (am *AuthManager) getUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, am.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpretry.NewRetryClient(am.oauth2Config.Client(ctx, token), 2).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google API error: HTTP %d", resp.StatusCode)
	}

	var userInfo GoogleUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return &userInfo, nil
}

// CleanupExpiredSessions removes expired in-memory sessions periodically
// until ctx is done. Redis sessions expire on their own.
func (am *AuthManager) CleanupExpiredSessions(ctx context.Context) {
	mem, ok := am.sessions.(*MemorySessionStore)
	if !ok {
		return
	}
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mem.Cleanup()
			}
		}
	}()
}

type actorKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor attached by Authenticate, or nil.
func ActorFrom(ctx context.Context) *domain.Actor {
	a, _ := ctx.Value(actorKey{}).(*domain.Actor)
	return a
}
