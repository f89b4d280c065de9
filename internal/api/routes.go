package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/onboarding/internal/auth"
	"github.com/ignite/onboarding/internal/tracking"
)

// RouteOptions carries the optional pieces mounted next to the API.
type RouteOptions struct {
	Health         *HealthChecker
	Tracking       *tracking.Handler
	AllowedOrigins []string
}

// SetupRoutes configures all routes. HR routes require an actor resolved by
// authManager; candidate routes are gated by their link tokens.
func SetupRoutes(h *Handlers, authManager *auth.AuthManager, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if opts.Health != nil {
		r.Get("/health", opts.Health.HandleHealth)
		r.Get("/health/ready", opts.Health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	if opts.Tracking != nil {
		opts.Tracking.Mount(r)
	}

	if authManager != nil {
		r.Get("/auth/login", authManager.HandleLogin)
		r.Get("/auth/callback", authManager.HandleCallback)
		r.Get("/auth/logout", authManager.HandleLogout)
		r.Get("/auth/user", authManager.HandleUserInfo)
	}

	r.Route("/api", func(r chi.Router) {
		// Public careers page
		r.Post("/applications", h.SubmitApplication)

		// Candidate self-service links
		r.Route("/public/applications/{id}", func(r chi.Router) {
			r.Post("/confirm-hiring/{token}", h.ConfirmHiring)
			r.Get("/payment-details/{token}", h.GetPaymentDetails)
			r.Post("/payment-details/{token}", h.SubmitPayment)
		})

		// HR
		r.Group(func(r chi.Router) {
			if authManager != nil {
				r.Use(authManager.Authenticate)
			}
			r.Use(auth.RequireAuth)

			r.Get("/applications/{id}", h.GetApplication)
			r.Put("/applications/{id}/status", h.SetStatus)
			r.Post("/applications/{id}/verify-payment", h.VerifyPayment)
			r.Post("/applications/{id}/create-account", h.CreateAccount)
			r.Get("/applications/{id}/email-tracking", h.EmailTracking)
			r.Get("/applications/{id}/receipt", h.DownloadReceipt)
		})
	})

	return r
}
