package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/onboarding/internal/pkg/httputil"
	"github.com/ignite/onboarding/internal/service/hiring"
)

// flexDate accepts "2006-01-02" or RFC 3339.
type flexDate time.Time

func (d *flexDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	*d = flexDate(t)
	return nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// ConfirmHiring handles POST /api/public/applications/{id}/confirm-hiring/{token}
func (h *Handlers) ConfirmHiring(w http.ResponseWriter, r *http.Request) {
	res, err := h.workflow.ConfirmHiring(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "token"))
	if err != nil {
		candidateError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"status":     res.Application.Status,
		"email_sent": res.EmailSent,
	})
}

// GetPaymentDetails handles GET /api/public/applications/{id}/payment-details/{token}
func (h *Handlers) GetPaymentDetails(w http.ResponseWriter, r *http.Request) {
	d, err := h.workflow.GetPaymentDetails(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "token"))
	if err != nil {
		candidateError(w, err)
		return
	}
	httputil.OK(w, d)
}

type paymentRequest struct {
	TransactionID string            `json:"transactionId"`
	Method        string            `json:"method"`
	Date          *flexDate         `json:"date"`
	Details       map[string]string `json:"details"`
}

func (p paymentRequest) submission() hiring.PaymentSubmission {
	s := hiring.PaymentSubmission{TransactionID: p.TransactionID, Method: p.Method, Details: p.Details}
	if p.Date != nil {
		t := time.Time(*p.Date)
		s.Date = &t
	}
	return s
}

// SubmitPayment handles POST /api/public/applications/{id}/payment-details/{token}.
// The body is JSON, or multipart/form-data with an optional "receipt" file.
func (h *Handlers) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	in, err := readPayment(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.workflow.SubmitPayment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "token"), in)
	if err != nil {
		candidateError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"status":         res.Application.Status,
		"transaction_id": res.Application.PaymentTransactionID,
		"email_sent":     res.CandidateNotice,
	})
}

func readPayment(w http.ResponseWriter, r *http.Request) (hiring.PaymentSubmission, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req paymentRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			return hiring.PaymentSubmission{}, hiring.Validation("body", "invalid JSON: %v", err)
		}
		return req.submission(), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, hiring.MaxReceiptBytes+(1<<20))
	if err := r.ParseMultipartForm(hiring.MaxReceiptBytes); err != nil {
		return hiring.PaymentSubmission{}, hiring.Validation("receipt", "upload too large or malformed")
	}
	defer r.MultipartForm.RemoveAll()
	req := paymentRequest{
		TransactionID: r.FormValue("transactionId"),
		Method:        r.FormValue("method"),
	}
	if v := r.FormValue("date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return hiring.PaymentSubmission{}, hiring.Validation("date", "%v", err)
		}
		fd := flexDate(t)
		req.Date = &fd
	}
	if v := r.FormValue("details"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Details); err != nil {
			return hiring.PaymentSubmission{}, hiring.Validation("details", "details must be a JSON object of strings")
		}
	}
	in := req.submission()

	file, fh, err := r.FormFile("receipt")
	if err == http.ErrMissingFile {
		return in, nil
	}
	if err != nil {
		return in, hiring.Validation("receipt", "unreadable receipt")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, hiring.MaxReceiptBytes+1))
	if err != nil {
		return in, hiring.Validation("receipt", "unreadable receipt")
	}
	// the declared type is untrusted; sniff the bytes
	in.Receipt = &hiring.Receipt{
		Filename:    fh.Filename,
		ContentType: http.DetectContentType(data),
		Data:        data,
	}
	return in, nil
}
