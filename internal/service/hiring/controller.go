package hiring

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/pkg/logger"
	"github.com/ignite/onboarding/internal/service/notify"
)

// Mailer dispatches a workflow email. A nil error means the dispatch was
// confirmed by the provider.
type Mailer interface {
	Send(ctx context.Context, e notify.Email) error
}

// Settings holds the workflow configuration the controller and provisioner read.
type Settings struct {
	BaseURL             string
	LoginURL            string
	HRNotifyEmail       string
	PaymentAmount       float64
	PaymentCurrency     string
	PaymentInstructions string
}

func (s Settings) confirmationURL(appID, token string) string {
	return fmt.Sprintf("%s/applications/%s/confirm-hiring/%s", strings.TrimRight(s.BaseURL, "/"), appID, token)
}

func (s Settings) paymentURL(appID, token string) string {
	return fmt.Sprintf("%s/applications/%s/payment-details/%s", strings.TrimRight(s.BaseURL, "/"), appID, token)
}

// Controller drives applications through the hiring pipeline.
type Controller struct {
	apps     ApplicationRepository
	jobs     JobRepository
	mailer   Mailer
	tokens   TokenIssuer
	receipts ReceiptStore
	settings Settings
	now      func() time.Time
	log      *logger.Logger
}

// NewController creates a controller. tokens defaults to RandomTokens.
func NewController(apps ApplicationRepository, jobs JobRepository, mailer Mailer, tokens TokenIssuer, settings Settings) *Controller {
	if tokens == nil {
		tokens = RandomTokens{}
	}
	if settings.PaymentCurrency == "" {
		settings.PaymentCurrency = "USD"
	}
	return &Controller{
		apps:     apps,
		jobs:     jobs,
		mailer:   mailer,
		tokens:   tokens,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Default().With("component", "hiring"),
	}
}

// SetReceiptStore enables payment receipt uploads.
func (c *Controller) SetReceiptStore(rs ReceiptStore) { c.receipts = rs }

// SetClock overrides the time source.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

// SubmitInput is a new application from the public careers page.
type SubmitInput struct {
	JobID    string `json:"job_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Submit creates a pending application for an open job.
func (c *Controller) Submit(ctx context.Context, in SubmitInput) (*domain.Application, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.JobID == "" {
		return nil, Validation("job_id", "job_id is required")
	}
	if in.FullName == "" {
		return nil, Validation("full_name", "full name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, Validation("email", "a valid email address is required")
	}

	job, err := c.jobs.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	now := c.now()
	if job.Deadline != nil && now.After(*job.Deadline) {
		return nil, Validation("job_id", "applications for this job are closed")
	}

	app := &domain.Application{
		ID:    uuid.New().String(),
		JobID: job.ID,
		Candidate: domain.Candidate{
			FullName: in.FullName,
			Email:    in.Email,
			Phone:    strings.TrimSpace(in.Phone),
		},
		Status:         domain.StatusPending,
		EmailsTracking: domain.EmailsTracking{},
		AuditTrail: []domain.AuditEntry{{
			Actor:     in.Email,
			Timestamp: now,
			Action:    domain.AuditSubmitted,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.apps.Create(ctx, app); err != nil {
		return nil, err
	}
	c.log.Info("application submitted", "application_id", app.ID, "job_id", job.ID)
	return app, nil
}

// GetApplication returns an application to HR.
func (c *Controller) GetApplication(ctx context.Context, actor *domain.Actor, id string) (*domain.Application, error) {
	if !actor.IsHR() {
		return nil, Unauthorized("HR access required")
	}
	return c.apps.Get(ctx, id)
}

// StatusResult is returned by SetStatus.
type StatusResult struct {
	Application *domain.Application `json:"application"`
	EmailSent   bool                `json:"email_sent"`
}

// SetStatus applies an HR review decision. Hiring issues a fresh
// confirmation token, which revokes any link sent by an earlier hire.
func (c *Controller) SetStatus(ctx context.Context, actor *domain.Actor, id, status, comment string) (*StatusResult, error) {
	if !actor.IsHR() {
		return nil, Unauthorized("HR access required")
	}
	to, err := domain.ParseStatus(status)
	if err != nil {
		return nil, Validation("status", "%v", err)
	}
	if !to.HRSettable() {
		return nil, Validation("status", "status %s is managed by the workflow", to)
	}

	app, err := c.apps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(app.Status, to) {
		return nil, Conflict("status", "cannot move from %s to %s", app.Status, to)
	}

	now := c.now()
	u := ReviewUpdate{
		Status:     to,
		Comment:    strings.TrimSpace(comment),
		ReviewedBy: actor.ID,
		ReviewedAt: now,
		Audit: domain.AuditEntry{
			Actor:     actor.ID,
			Timestamp: now,
			Action:    domain.AuditStatusChanged,
			Note:      fmt.Sprintf("%s -> %s", app.Status, to),
		},
	}
	switch to {
	case domain.StatusHired:
		token, err := c.tokens.Issue()
		if err != nil {
			return nil, Internal(err, "issue confirmation token")
		}
		u.SetHiring, u.IsHired, u.ConfirmationToken = true, true, token
	case domain.StatusRejected:
		u.SetHiring, u.IsHired = true, false
	}

	updated, err := c.apps.UpdateReview(ctx, id, app.Status, u)
	if err != nil {
		return nil, err
	}
	c.log.Info("status changed", "application_id", id, "from", app.Status, "to", to, "actor", actor.ID)

	res := &StatusResult{Application: updated}
	switch to {
	case domain.StatusHired:
		res.EmailSent = c.deliver(ctx, updated, domain.EmailHireReject, "hire", notify.TemplateHire, map[string]any{
			"confirmation_url": c.settings.confirmationURL(updated.ID, u.ConfirmationToken),
		})
	case domain.StatusRejected:
		res.EmailSent = c.deliver(ctx, updated, domain.EmailHireReject, "reject", notify.TemplateReject, map[string]any{
			"comment": u.Comment,
		})
	}
	if res.EmailSent {
		c.refresh(ctx, res.Application)
	}
	return res, nil
}

// ConfirmResult is returned by ConfirmHiring.
type ConfirmResult struct {
	Application *domain.Application `json:"application"`
	EmailSent   bool                `json:"email_sent"`
}

// ConfirmHiring redeems the candidate's confirmation token and issues the
// payment token. A second redemption of the same token is a conflict and
// leaves the payment token untouched.
func (c *Controller) ConfirmHiring(ctx context.Context, id, token string) (*ConfirmResult, error) {
	if id == "" || token == "" {
		return nil, NotFound("application not found")
	}
	paymentToken, err := c.tokens.Issue()
	if err != nil {
		return nil, Internal(err, "issue payment token")
	}
	now := c.now()
	updated, err := c.apps.ConfirmHiring(ctx, id, token, ConfirmationUpdate{
		ConfirmedAt:     now,
		PaymentToken:    paymentToken,
		PaymentAmount:   c.settings.PaymentAmount,
		PaymentCurrency: c.settings.PaymentCurrency,
		Audit: domain.AuditEntry{
			Actor:     "candidate",
			Timestamp: now,
			Action:    domain.AuditHiringConfirmed,
		},
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("hiring confirmed", "application_id", id)

	res := &ConfirmResult{Application: updated}
	res.EmailSent = c.deliver(ctx, updated, domain.EmailPaymentRequest, "payment_request", notify.TemplatePaymentRequest, map[string]any{
		"payment_url":  c.settings.paymentURL(updated.ID, paymentToken),
		"amount":       updated.PaymentAmount,
		"currency":     updated.PaymentCurrency,
		"instructions": c.settings.PaymentInstructions,
	})
	if res.EmailSent {
		c.refresh(ctx, res.Application)
	}
	return res, nil
}

// PaymentDetails is the candidate's view of the payment step.
type PaymentDetails struct {
	ApplicationID    string     `json:"application_id"`
	CandidateName    string     `json:"candidate_name"`
	JobTitle         string     `json:"job_title"`
	Department       string     `json:"department"`
	Amount           float64    `json:"amount"`
	Currency         string     `json:"currency"`
	Instructions     string     `json:"instructions,omitempty"`
	PaymentCompleted bool       `json:"payment_completed"`
	TransactionID    string     `json:"transaction_id,omitempty"`
	PaymentDate      *time.Time `json:"payment_date,omitempty"`
	PaymentVerified  bool       `json:"payment_verified"`
	Status           string     `json:"status"`
}

// GetPaymentDetails returns the payment view for a valid payment token.
func (c *Controller) GetPaymentDetails(ctx context.Context, id, token string) (*PaymentDetails, error) {
	if id == "" || token == "" {
		return nil, NotFound("application not found")
	}
	app, err := c.apps.GetByPaymentToken(ctx, id, token)
	if err != nil {
		return nil, err
	}
	d := &PaymentDetails{
		ApplicationID:    app.ID,
		CandidateName:    app.Candidate.FullName,
		Amount:           app.PaymentAmount,
		Currency:         app.PaymentCurrency,
		PaymentCompleted: app.PaymentCompleted,
		PaymentVerified:  app.PaymentVerified,
		Status:           string(app.Status),
	}
	if job := c.lookupJob(ctx, app.JobID); job != nil {
		d.JobTitle, d.Department = job.Title, job.Department
	}
	if app.PaymentCompleted {
		d.TransactionID = app.PaymentTransactionID
		d.PaymentDate = app.PaymentDate
	} else {
		d.Instructions = c.settings.PaymentInstructions
	}
	return d, nil
}

// Receipt is an uploaded proof of payment.
type Receipt struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MaxReceiptBytes bounds receipt uploads.
const MaxReceiptBytes = 5 << 20

var receiptTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// PaymentSubmission is the candidate's payment proof.
type PaymentSubmission struct {
	TransactionID string            `json:"transaction_id"`
	Method        string            `json:"method"`
	Date          *time.Time        `json:"date,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
	Receipt       *Receipt          `json:"-"`
}

// PaymentResult is returned by SubmitPayment.
type PaymentResult struct {
	Application     *domain.Application `json:"application"`
	CandidateNotice bool                `json:"candidate_email_sent"`
	HRNotice        bool                `json:"hr_email_sent"`
}

// SubmitPayment records the candidate's payment. Once a payment is
// completed every further submission is a conflict, whatever the token.
func (c *Controller) SubmitPayment(ctx context.Context, id, token string, in PaymentSubmission) (*PaymentResult, error) {
	if id == "" || token == "" {
		return nil, NotFound("application not found")
	}

	current, err := c.apps.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if current == nil || !PaymentGuard(current, token) {
		return nil, ClassifyPaymentMiss(current, token)
	}

	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.Method = strings.TrimSpace(in.Method)
	if in.TransactionID == "" {
		return nil, Validation("transaction_id", "transaction id is required")
	}
	if in.Method == "" {
		return nil, Validation("method", "payment method is required")
	}

	now := c.now()
	paidAt := now
	if in.Date != nil {
		if in.Date.After(now.Add(24 * time.Hour)) {
			return nil, Validation("date", "payment date is in the future")
		}
		paidAt = in.Date.UTC()
	}

	var receiptKey string
	if in.Receipt != nil && len(in.Receipt.Data) > 0 {
		receiptKey, err = c.storeReceipt(ctx, id, in.Receipt)
		if err != nil {
			return nil, err
		}
	}

	updated, err := c.apps.SubmitPayment(ctx, id, token, PaymentUpdate{
		TransactionID: in.TransactionID,
		Method:        in.Method,
		Details:       in.Details,
		PaidAt:        paidAt,
		ReceiptKey:    receiptKey,
		Audit: domain.AuditEntry{
			Actor:     "candidate",
			Timestamp: now,
			Action:    domain.AuditPaymentSubmit,
			Note:      in.TransactionID,
		},
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("payment submitted", "application_id", id, "method", in.Method)

	res := &PaymentResult{Application: updated}
	data := map[string]any{
		"transaction_id": updated.PaymentTransactionID,
		"method":         updated.PaymentMethod,
		"amount":         updated.PaymentAmount,
		"currency":       updated.PaymentCurrency,
		"application_id": updated.ID,
	}
	res.CandidateNotice = c.deliver(ctx, updated, domain.EmailPaymentConfirmation, "payment_received", notify.TemplatePaymentReceived, data)
	if c.settings.HRNotifyEmail != "" {
		res.HRNotice = c.deliverTo(ctx, c.settings.HRNotifyEmail, updated, domain.EmailHRPaymentNotice, "hr_payment_notification", notify.TemplateHRPaymentNotice, data)
	}
	if res.CandidateNotice || res.HRNotice {
		c.refresh(ctx, res.Application)
	}
	return res, nil
}

func (c *Controller) storeReceipt(ctx context.Context, id string, r *Receipt) (string, error) {
	if c.receipts == nil {
		return "", Validation("receipt", "receipt uploads are not enabled")
	}
	if len(r.Data) > MaxReceiptBytes {
		return "", Validation("receipt", "receipt exceeds %d bytes", MaxReceiptBytes)
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(r.ContentType, ";", 2)[0]))
	ext, ok := receiptTypes[ct]
	if !ok {
		return "", Validation("receipt", "unsupported receipt type %q", r.ContentType)
	}
	key := fmt.Sprintf("receipts/%s/%s%s", id, uuid.New().String(), ext)
	if err := c.receipts.PutReceipt(ctx, key, ct, r.Data); err != nil {
		return "", Internal(err, "store receipt")
	}
	return key, nil
}

// VerificationResult is returned by VerifyPayment.
type VerificationResult struct {
	Application *domain.Application `json:"application"`
	EmailSent   bool                `json:"email_sent"`
}

// VerifyPayment records HR's verdict on a submitted payment.
func (c *Controller) VerifyPayment(ctx context.Context, actor *domain.Actor, id string, isValid bool, note string) (*VerificationResult, error) {
	if !actor.IsHR() {
		return nil, Unauthorized("HR access required")
	}
	now := c.now()
	action := domain.AuditPaymentVerified
	if !isValid {
		action = domain.AuditPaymentRejected
	}
	note = strings.TrimSpace(note)
	updated, err := c.apps.VerifyPayment(ctx, id, VerificationUpdate{
		IsValid:    isValid,
		VerifiedBy: actor.ID,
		Note:       note,
		VerifiedAt: now,
		Audit: domain.AuditEntry{
			Actor:     actor.ID,
			Timestamp: now,
			Action:    action,
			Note:      note,
		},
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("payment verified", "application_id", id, "valid", isValid, "actor", actor.ID)

	tpl, emailType := notify.TemplatePaymentVerified, "payment_verified"
	if !isValid {
		tpl, emailType = notify.TemplatePaymentRejected, "payment_rejected"
	}
	res := &VerificationResult{Application: updated}
	res.EmailSent = c.deliver(ctx, updated, domain.EmailPaymentVerification, emailType, tpl, map[string]any{
		"transaction_id": updated.PaymentTransactionID,
		"note":           note,
	})
	if res.EmailSent {
		c.refresh(ctx, res.Application)
	}
	return res, nil
}

// EmailTracking returns the ledger summary of an application.
func (c *Controller) EmailTracking(ctx context.Context, actor *domain.Actor, id string) (*domain.EmailTrackingSummary, error) {
	if !actor.IsHR() {
		return nil, Unauthorized("HR access required")
	}
	app, err := c.apps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s := app.Summarize()
	return &s, nil
}

// MarkEmailOpened records an open reported by the tracking pixel.
func (c *Controller) MarkEmailOpened(ctx context.Context, id string, kind domain.EmailKind, at time.Time) error {
	if !kind.Valid() {
		return Validation("kind", "unknown email kind %q", kind)
	}
	if at.IsZero() {
		at = c.now()
	}
	return c.apps.MarkEmailOpened(ctx, id, kind, at)
}

func (c *Controller) deliver(ctx context.Context, app *domain.Application, kind domain.EmailKind, emailType string, tpl notify.Template, extra map[string]any) bool {
	return c.deliverTo(ctx, app.Candidate.Email, app, kind, emailType, tpl, extra)
}

// deliverTo sends one workflow email and records it in the ledger once the
// dispatch is confirmed. Failures are logged and never undo the transition.
func (c *Controller) deliverTo(ctx context.Context, to string, app *domain.Application, kind domain.EmailKind, emailType string, tpl notify.Template, extra map[string]any) bool {
	if c.mailer == nil {
		return false
	}
	data := c.baseData(ctx, app)
	for k, v := range extra {
		data[k] = v
	}
	err := c.mailer.Send(ctx, notify.Email{
		To:            to,
		Template:      tpl,
		Data:          data,
		ApplicationID: app.ID,
		Kind:          kind,
	})
	if err != nil {
		c.log.Warn("email dispatch failed", "application_id", app.ID, "kind", kind, "error", err)
		return false
	}
	if err := c.apps.RecordEmail(ctx, app.ID, kind, emailType, c.now()); err != nil {
		c.log.Error("email ledger update failed", "application_id", app.ID, "kind", kind, "error", err)
	}
	return true
}

func (c *Controller) baseData(ctx context.Context, app *domain.Application) map[string]any {
	data := map[string]any{
		"candidate_name": app.Candidate.FullName,
		"application_id": app.ID,
		"job_title":      "",
		"department":     "",
		"login_url":      c.settings.LoginURL,
	}
	if job := c.lookupJob(ctx, app.JobID); job != nil {
		data["job_title"] = job.Title
		data["department"] = job.Department
	}
	return data
}

func (c *Controller) lookupJob(ctx context.Context, jobID string) *domain.Job {
	if jobID == "" || c.jobs == nil {
		return nil
	}
	job, err := c.jobs.GetJob(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.Warn("job lookup failed", "job_id", jobID, "error", err)
		}
		return nil
	}
	return job
}

// refresh reloads app in place so callers see the ledger written after dispatch.
func (c *Controller) refresh(ctx context.Context, app *domain.Application) {
	fresh, err := c.apps.Get(ctx, app.ID)
	if err != nil {
		return
	}
	*app = *fresh
}
