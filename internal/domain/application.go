package domain

import "time"

// Candidate holds the applicant's contact details.
type Candidate struct {
	FullName string `json:"full_name" db:"candidate_name"`
	Email    string `json:"email" db:"candidate_email"`
	Phone    string `json:"phone,omitempty" db:"candidate_phone"`
}

// Application is a candidate's submission against a Job, tracked through the
// hiring pipeline. Bearer tokens are never serialized.
type Application struct {
	ID        string            `json:"id" db:"id"`
	JobID     string            `json:"job_id" db:"job_id"`
	Candidate Candidate         `json:"candidate"`
	Status    ApplicationStatus `json:"status" db:"status"`

	HRComments string     `json:"hr_comments,omitempty" db:"hr_comments"`
	ReviewedBy string     `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewDate *time.Time `json:"review_date,omitempty" db:"review_date"`

	IsHired   bool       `json:"is_hired" db:"is_hired"`
	HiredDate *time.Time `json:"hired_date,omitempty" db:"hired_date"`

	CandidateConfirmed         bool       `json:"candidate_confirmed" db:"candidate_confirmed"`
	CandidateConfirmationDate  *time.Time `json:"candidate_confirmation_date,omitempty" db:"candidate_confirmation_date"`
	CandidateConfirmationToken string     `json:"-" db:"candidate_confirmation_token"`

	PaymentRequired      bool              `json:"payment_required" db:"payment_required"`
	PaymentAmount        float64           `json:"payment_amount" db:"payment_amount"`
	PaymentCurrency      string            `json:"payment_currency,omitempty" db:"payment_currency"`
	PaymentCompleted     bool              `json:"payment_completed" db:"payment_completed"`
	PaymentTransactionID string            `json:"payment_transaction_id,omitempty" db:"payment_transaction_id"`
	PaymentDate          *time.Time        `json:"payment_date,omitempty" db:"payment_date"`
	PaymentMethod        string            `json:"payment_method,omitempty" db:"payment_method"`
	PaymentMethodDetails map[string]string `json:"payment_method_details,omitempty" db:"payment_method_details"`
	PaymentReceiptKey    string            `json:"payment_receipt_key,omitempty" db:"payment_receipt_key"`
	PaymentToken         string            `json:"-" db:"payment_token"`

	PaymentVerified          bool       `json:"payment_verified" db:"payment_verified"`
	PaymentVerifiedBy        string     `json:"payment_verified_by,omitempty" db:"payment_verified_by"`
	PaymentVerificationDate  *time.Time `json:"payment_verification_date,omitempty" db:"payment_verification_date"`
	PaymentVerificationNotes string     `json:"payment_verification_notes,omitempty" db:"payment_verification_notes"`

	EmployeeCreated bool   `json:"employee_created" db:"employee_created"`
	EmployeeID      string `json:"employee_id,omitempty" db:"employee_id"`

	EmailsTracking  EmailsTracking `json:"emails_tracking" db:"emails_tracking"`
	TotalEmailsSent int            `json:"total_emails_sent" db:"total_emails_sent"`
	AuditTrail      []AuditEntry   `json:"audit_trail" db:"audit_trail"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ConfirmationTokenLive reports whether the confirmation token may still be redeemed.
func (a *Application) ConfirmationTokenLive() bool {
	return a.IsHired && !a.CandidateConfirmed && a.CandidateConfirmationToken != ""
}

// PaymentTokenLive reports whether the payment token may be used to read or
// submit payment details.
func (a *Application) PaymentTokenLive() bool {
	return a.CandidateConfirmed && a.PaymentToken != ""
}

// PaymentVerifiedAs reports whether HR already recorded the given verification outcome.
func (a *Application) PaymentVerifiedAs(isValid bool) bool {
	return a.PaymentVerificationDate != nil && a.PaymentVerified == isValid
}

// AuditAction names a structured audit trail event.
type AuditAction string

const (
	AuditSubmitted       AuditAction = "submitted"
	AuditStatusChanged   AuditAction = "status_changed"
	AuditHiringConfirmed AuditAction = "hiring_confirmed"
	AuditPaymentSubmit   AuditAction = "payment_submitted"
	AuditPaymentVerified AuditAction = "payment_verified"
	AuditPaymentRejected AuditAction = "payment_rejected"
	AuditEmployeeCreated AuditAction = "employee_created"
)

// AuditEntry is one ordered record in an application's audit trail.
type AuditEntry struct {
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Action    AuditAction `json:"action"`
	Note      string      `json:"note,omitempty"`
}

// Job is the posting an application targets. Read-only to the workflow.
type Job struct {
	ID         string     `json:"id" db:"id"`
	Title      string     `json:"title" db:"title"`
	Department string     `json:"department" db:"department"`
	Capacity   int        `json:"capacity" db:"capacity"`
	Deadline   *time.Time `json:"deadline,omitempty" db:"deadline"`
}
