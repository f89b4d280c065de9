package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignite/onboarding/internal/auth"
	"github.com/ignite/onboarding/internal/config"
	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/pkg/distlock"
	"github.com/ignite/onboarding/internal/repository/memory"
	"github.com/ignite/onboarding/internal/service/hiring"
	"github.com/ignite/onboarding/internal/service/notify"
	"github.com/ignite/onboarding/internal/storage"
	"github.com/ignite/onboarding/internal/tracking"
)

var apiNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type captureMailer struct {
	mu   sync.Mutex
	sent []notify.Email
}

func (m *captureMailer) Send(_ context.Context, e notify.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

// linkToken returns the token at the end of the last mailed URL under key.
func (m *captureMailer) linkToken(t *testing.T, tpl notify.Template, key string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Template == tpl {
			url, ok := m.sent[i].Data[key].(string)
			require.True(t, ok, "missing %s", key)
			return path.Base(url)
		}
	}
	t.Fatalf("no %s email sent", tpl)
	return ""
}

type testServer struct {
	srv    *httptest.Server
	mailer *captureMailer
	signer *tracking.Signer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	store.PutJob(domain.Job{ID: "job-1", Title: "Backend Engineer", Department: "Engineering", Capacity: 10})

	receipts, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	mailer := &captureMailer{}
	settings := hiring.Settings{
		BaseURL:         "https://jobs.example.com",
		LoginURL:        "https://portal.example.com",
		HRNotifyEmail:   "payments@example.com",
		PaymentAmount:   150,
		PaymentCurrency: "EUR",
	}
	ctl := hiring.NewController(store, store, mailer, nil, settings)
	ctl.SetClock(func() time.Time { return apiNow })
	ctl.SetReceiptStore(receipts)
	prov := hiring.NewProvisioner(store, store, store, distlock.NewLocalLocker(), mailer, settings)
	prov.SetClock(func() time.Time { return apiNow })
	prov.SetHashCost(bcrypt.MinCost)

	h := NewHandlers(ctl, prov)
	h.SetReceiptReader(receipts)

	am := auth.NewAuthManager(&config.AuthConfig{DevMode: true, CookieName: "s", CookieMaxAge: 60}, "http://localhost", auth.NewMemorySessionStore())
	signer := tracking.NewSigner("pixel-key")
	router := SetupRoutes(h, am, RouteOptions{
		Health:   NewHealthChecker(nil, nil),
		Tracking: tracking.NewHandler(signer, tracking.NewDirectRecorder(ctl)),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, mailer: mailer, signer: signer}
}

func (s *testServer) do(t *testing.T, method, p string, body any, hr bool) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+p, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if hr {
		req.Header.Set(auth.DevEmailHeader, "lead@example.com")
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (s *testServer) submitPaymentMultipart(t *testing.T, id, token, txn string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("transactionId", txn))
	require.NoError(t, mw.WriteField("method", "bank_transfer"))
	require.NoError(t, mw.WriteField("date", "2026-10-13"))
	require.NoError(t, mw.WriteField("details", `{"bank":"First National"}`))
	fw, err := mw.CreateFormFile("receipt", "receipt.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/public/applications/%s/payment-details/%s", s.srv.URL, id, token), &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.send(t, req)
}

func TestHTTPPipeline(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/applications", map[string]string{
		"job_id": "job-1", "full_name": "Jane Roe", "email": "jane@example.org",
	}, false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	assert.Equal(t, "pending", body["status"])

	resp, body = s.do(t, http.MethodPut, "/api/applications/"+id+"/status", map[string]string{"status": "hired", "comment": "strong"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["email_sent"])
	confirmToken := s.mailer.linkToken(t, notify.TemplateHire, "confirmation_url")

	resp, body = s.do(t, http.MethodPost, "/api/public/applications/"+id+"/confirm-hiring/"+confirmToken, nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "candidate_confirmed", body["status"])

	resp, _ = s.do(t, http.MethodPost, "/api/public/applications/"+id+"/confirm-hiring/"+confirmToken, nil, false)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	payToken := s.mailer.linkToken(t, notify.TemplatePaymentRequest, "payment_url")
	resp, body = s.do(t, http.MethodGet, "/api/public/applications/"+id+"/payment-details/"+payToken, nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 150.0, body["amount"])
	assert.Equal(t, "EUR", body["currency"])
	assert.Equal(t, "Backend Engineer", body["job_title"])

	resp, body = s.submitPaymentMultipart(t, id, payToken, "TXN-1")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "payment_submitted", body["status"])

	resp, _ = s.do(t, http.MethodPost, "/api/public/applications/"+id+"/payment-details/"+payToken, map[string]string{
		"transactionId": "TXN-2", "method": "card",
	}, false)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/applications/"+id+"/verify-payment", map[string]any{"isValid": true, "notes": "matched"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = s.do(t, http.MethodPost, "/api/applications/"+id+"/create-account", map[string]any{"joiningDate": "2026-11-02", "salary": 72000}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	account := body["account"].(map[string]any)
	assert.Equal(t, "EMP26EN001", account["employee_code"])
	assert.Equal(t, "jane_roe", account["username"])
	assert.NotContains(t, body, "temp_password")
	assert.NotContains(t, account, "password_hash")

	resp, _ = s.do(t, http.MethodPost, "/api/applications/"+id+"/create-account", nil, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/applications/"+id+"/email-tracking", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6.0, body["total_emails_sent"])

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/applications/"+id+"/receipt", nil)
	require.NoError(t, err)
	req.Header.Set(auth.DevEmailHeader, "lead@example.com")
	rresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	rresp.Body.Close()
	assert.Equal(t, http.StatusOK, rresp.StatusCode)
	assert.Equal(t, "image/png", rresp.Header.Get("Content-Type"))
}

func TestCandidateLinksDoNotLeakWhichPartIsWrong(t *testing.T) {
	s := newTestServer(t)
	_, body := s.do(t, http.MethodPost, "/api/applications", map[string]string{
		"job_id": "job-1", "full_name": "Sam Poe", "email": "sam@example.org",
	}, false)
	id := body["id"].(string)
	s.do(t, http.MethodPut, "/api/applications/"+id+"/status", map[string]string{"status": "hired"}, true)

	badToken, b1 := s.do(t, http.MethodPost, "/api/public/applications/"+id+"/confirm-hiring/wrong", nil, false)
	badID, b2 := s.do(t, http.MethodPost, "/api/public/applications/nope/confirm-hiring/wrong", nil, false)
	assert.Equal(t, http.StatusNotFound, badToken.StatusCode)
	assert.Equal(t, http.StatusNotFound, badID.StatusCode)
	assert.Equal(t, invalidLink, b1["error"])
	assert.Equal(t, b1, b2)

	resp, body := s.do(t, http.MethodGet, "/api/public/applications/"+id+"/payment-details/wrong", nil, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, invalidLink, body["error"])
}

func TestHRRoutesRequireActor(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodGet, "/api/applications/any", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/applications/any", nil)
	require.NoError(t, err)
	req.Header.Set(auth.DevEmailHeader, "dev@example.com")
	req.Header.Set(auth.DevRoleHeader, string(domain.RoleEmployee))
	resp, _ = s.send(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStatusValidationAndConflictCodes(t *testing.T) {
	s := newTestServer(t)
	_, body := s.do(t, http.MethodPost, "/api/applications", map[string]string{
		"job_id": "job-1", "full_name": "Lee Moe", "email": "lee@example.org",
	}, false)
	id := body["id"].(string)

	resp, body := s.do(t, http.MethodPut, "/api/applications/"+id+"/status", map[string]string{"status": "employee_created"}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "status", body["field"])

	resp, body = s.do(t, http.MethodPost, "/api/applications/"+id+"/verify-payment", map[string]any{"isValid": true}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "payment_transaction_id", body["field"])

	resp, body = s.do(t, http.MethodPost, "/api/applications/"+id+"/create-account", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "payment_verified", body["field"])

	resp, _ = s.do(t, http.MethodPost, "/api/applications/"+id+"/verify-payment", map[string]any{}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/applications/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitApplicationValidation(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/api/applications", map[string]string{"job_id": "job-1", "full_name": "X", "email": "not-an-email"}, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email", body["field"])

	resp, _ = s.do(t, http.MethodPost, "/api/applications", map[string]string{"job_id": "job-404", "full_name": "X", "email": "x@example.org"}, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTrackingPixelMarksOpen(t *testing.T) {
	s := newTestServer(t)
	_, body := s.do(t, http.MethodPost, "/api/applications", map[string]string{
		"job_id": "job-1", "full_name": "Ola Nordmann", "email": "ola@example.org",
	}, false)
	id := body["id"].(string)
	s.do(t, http.MethodPut, "/api/applications/"+id+"/status", map[string]string{"status": "rejected", "comment": "position filled"}, true)

	data, sig := s.signer.Encode(id, domain.EmailHireReject)
	resp, err := http.Get(s.srv.URL + "/track/open/" + data + "/" + sig)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))

	_, body = s.do(t, http.MethodGet, "/api/applications/"+id+"/email-tracking", nil, true)
	assert.Equal(t, 1.0, body["opened"])
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "checks")

	resp, body = s.do(t, http.MethodGet, "/health/ready", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ready"])
}

func TestDetermineOverallStatus(t *testing.T) {
	assert.Equal(t, "healthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "down", Message: notConfigured},
	}))
	assert.Equal(t, "unhealthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "down", Message: "ping failed"},
	}))
	assert.Equal(t, "degraded", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"},
		"redis":    {Status: "down", Message: "ping failed"},
	}))
}
