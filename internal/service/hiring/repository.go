package hiring

import (
	"context"
	"time"

	"github.com/ignite/onboarding/internal/domain"
)

// ApplicationRepository defines the data access contract for applications.
//
// Every mutating method other than Create is a single conditional update:
// the guard and the delta are applied together so two concurrent callers can
// never both observe the precondition as true. When the guard fails the
// implementation classifies the miss with a read that never mutates.
// Implementations must be safe for concurrent use.
type ApplicationRepository interface {
	// Create inserts a new application. Returns a conflict on the email field
	// if the candidate already applied to the job.
	Create(ctx context.Context, app *domain.Application) error

	// Get returns a single application. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Application, error)

	// UpdateReview applies an HR review decision guarded on the status the
	// caller validated against. Returns a conflict if the status moved.
	UpdateReview(ctx context.Context, id string, from domain.ApplicationStatus, u ReviewUpdate) (*domain.Application, error)

	// ConfirmHiring redeems a confirmation token. The update is keyed on
	// (id, token, is_hired, not confirmed). A redeemed token yields a
	// conflict; any other miss yields ErrNotFound.
	ConfirmHiring(ctx context.Context, id, token string, u ConfirmationUpdate) (*domain.Application, error)

	// GetByPaymentToken returns the application matching (id, payment token)
	// once the candidate has confirmed. Returns ErrNotFound otherwise.
	GetByPaymentToken(ctx context.Context, id, token string) (*domain.Application, error)

	// SubmitPayment records the candidate's payment. A completed payment is
	// a conflict regardless of the token; any other miss yields ErrNotFound.
	SubmitPayment(ctx context.Context, id, token string, u PaymentUpdate) (*domain.Application, error)

	// VerifyPayment records HR's verdict on a submitted payment.
	VerifyPayment(ctx context.Context, id string, u VerificationUpdate) (*domain.Application, error)

	// RecordEmail applies one ledger delta: the kind's sent flag and date,
	// and the total counter when the flag flips. One statement.
	RecordEmail(ctx context.Context, id string, kind domain.EmailKind, emailType string, at time.Time) error

	// MarkEmailOpened sets the kind's opened flag once.
	MarkEmailOpened(ctx context.Context, id string, kind domain.EmailKind, at time.Time) error
}

// JobRepository is the read-only job lookup the workflow needs.
type JobRepository interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
}

// ProvisioningStore creates employee accounts.
type ProvisioningStore interface {
	// AccountExistsForEmail reports whether any account uses the email.
	AccountExistsForEmail(ctx context.Context, email string) (bool, error)

	// UsernameTaken reports whether the username is in use.
	UsernameTaken(ctx context.Context, username string) (bool, error)

	// Provision runs one transaction: lock the application row, re-check
	// CheckProvisionable, increment the named sequence, insert the account
	// and finalize the application. Nothing is kept when any step fails, so
	// a failed attempt leaves no gap in the sequence. Returns ErrUsernameTaken
	// when the username lost a race, ErrEmailTaken or ErrEmployeeCodeTaken
	// for the other unique columns.
	Provision(ctx context.Context, req ProvisionRequest) (*domain.Account, *domain.Application, error)
}

// ReviewUpdate is the delta of an HR status change.
type ReviewUpdate struct {
	Status     domain.ApplicationStatus
	Comment    string
	ReviewedBy string
	ReviewedAt time.Time

	// SetHiring applies IsHired and ConfirmationToken. Hiring stores a fresh
	// token; rejecting clears it.
	SetHiring         bool
	IsHired           bool
	ConfirmationToken string

	Audit domain.AuditEntry
}

// ConfirmationUpdate is the delta of a successful hiring confirmation.
type ConfirmationUpdate struct {
	ConfirmedAt     time.Time
	PaymentToken    string
	PaymentAmount   float64
	PaymentCurrency string
	Audit           domain.AuditEntry
}

// PaymentUpdate is the delta of a payment submission.
type PaymentUpdate struct {
	TransactionID string
	Method        string
	Details       map[string]string
	PaidAt        time.Time
	ReceiptKey    string
	Audit         domain.AuditEntry
}

// VerificationUpdate is the delta of an HR payment verification.
type VerificationUpdate struct {
	IsValid    bool
	VerifiedBy string
	Note       string
	VerifiedAt time.Time
	Audit      domain.AuditEntry
}

// Status returns the application status the verdict moves to.
func (u VerificationUpdate) Status() domain.ApplicationStatus {
	if u.IsValid {
		return domain.StatusPaymentVerified
	}
	return domain.StatusPaymentRejected
}

// ProvisionRequest carries everything the store needs for the provisioning
// transaction. BuildCode turns the reserved sequence value into the
// employee code.
type ProvisionRequest struct {
	ApplicationID string
	SequenceKey   string
	BuildCode     func(seq int) (string, error)
	Account       domain.Account
	Audit         domain.AuditEntry
}

// ReceiptStore persists payment receipts uploaded by candidates.
type ReceiptStore interface {
	PutReceipt(ctx context.Context, key, contentType string, data []byte) error
}

// Locker serializes work on a key across processes. TryLock does not block:
// ok is false when another holder owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}
