package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/onboarding/internal/auth"
	"github.com/ignite/onboarding/internal/pkg/httputil"
	"github.com/ignite/onboarding/internal/service/hiring"
	"github.com/ignite/onboarding/internal/storage"
)

// invalidLink is the only not-found message candidate endpoints return.
const invalidLink = "invalid or expired link"

// ReceiptReader opens stored payment receipts for HR download.
type ReceiptReader interface {
	OpenReceipt(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Handlers contains the hiring workflow HTTP handlers
type Handlers struct {
	workflow    *hiring.Controller
	provisioner *hiring.Provisioner
	receipts    ReceiptReader
}

// NewHandlers creates a new Handlers instance
func NewHandlers(workflow *hiring.Controller, provisioner *hiring.Provisioner) *Handlers {
	return &Handlers{workflow: workflow, provisioner: provisioner}
}

// SetReceiptReader enables the HR receipt download endpoint.
func (h *Handlers) SetReceiptReader(r ReceiptReader) {
	h.receipts = r
}

// candidateError hides which part of a token link was wrong.
func candidateError(w http.ResponseWriter, err error) {
	if errors.Is(err, hiring.ErrNotFound) {
		httputil.JSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: invalidLink, Code: string(hiring.KindNotFound)})
		return
	}
	writeError(w, err)
}

// SubmitApplication handles POST /api/applications
func (h *Handlers) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	var in hiring.SubmitInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	app, err := h.workflow.Submit(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, map[string]interface{}{
		"id":     app.ID,
		"status": app.Status,
	})
}

// GetApplication handles GET /api/applications/{id}
func (h *Handlers) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.workflow.GetApplication(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, app)
}

type statusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// SetStatus handles PUT /api/applications/{id}/status
func (h *Handlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	res, err := h.workflow.SetStatus(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"), req.Status, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}

type verifyRequest struct {
	IsValid *bool  `json:"isValid"`
	Notes   string `json:"notes"`
}

// VerifyPayment handles POST /api/applications/{id}/verify-payment
func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.IsValid == nil {
		writeError(w, hiring.Validation("isValid", "isValid is required"))
		return
	}
	res, err := h.workflow.VerifyPayment(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"), *req.IsValid, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}

type createAccountRequest struct {
	TempPassword string    `json:"tempPassword"`
	JoiningDate  *flexDate `json:"joiningDate"`
	Salary       *float64  `json:"salary"`
}

// CreateAccount handles POST /api/applications/{id}/create-account
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if r.ContentLength != 0 && !httputil.Decode(w, r, &req) {
		return
	}
	o := hiring.Overrides{TempPassword: req.TempPassword, Salary: req.Salary}
	if req.JoiningDate != nil {
		t := time.Time(*req.JoiningDate)
		o.JoiningDate = &t
	}
	res, err := h.provisioner.CreateAccount(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"), o)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, res)
}

// EmailTracking handles GET /api/applications/{id}/email-tracking
func (h *Handlers) EmailTracking(w http.ResponseWriter, r *http.Request) {
	summary, err := h.workflow.EmailTracking(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, summary)
}

// DownloadReceipt handles GET /api/applications/{id}/receipt
func (h *Handlers) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	app, err := h.workflow.GetApplication(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if h.receipts == nil || app.PaymentReceiptKey == "" {
		httputil.NotFound(w, "no receipt on file")
		return
	}
	rc, contentType, err := h.receipts.OpenReceipt(r.Context(), app.PaymentReceiptKey)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, "no receipt on file")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment")
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("[api] receipt download for %s: %v", app.ID, err)
	}
}
