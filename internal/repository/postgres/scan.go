package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/service/hiring"
)

// appFields is the select list every application query returns, in scan order.
var appFields = []string{
	"id", "job_id", "candidate_name", "candidate_email", "COALESCE(candidate_phone,'')", "status",
	"COALESCE(hr_comments,'')", "COALESCE(reviewed_by,'')", "review_date",
	"is_hired", "hired_date",
	"candidate_confirmed", "candidate_confirmation_date", "COALESCE(candidate_confirmation_token,'')",
	"payment_required", "payment_amount", "COALESCE(payment_currency,'')", "payment_completed",
	"COALESCE(payment_transaction_id,'')", "payment_date", "COALESCE(payment_method,'')",
	"payment_method_details", "COALESCE(payment_receipt_key,'')", "COALESCE(payment_token,'')",
	"payment_verified", "COALESCE(payment_verified_by,'')", "payment_verification_date",
	"COALESCE(payment_verification_notes,'')",
	"employee_created", "COALESCE(employee_id,'')",
	"emails_tracking", "total_emails_sent", "audit_trail", "created_at", "updated_at",
}

var appColumns = strings.Join(appFields, ", ")

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	var a domain.Application
	var reviewDate, hiredDate, confirmedAt, paymentDate, verifiedAt sql.NullTime
	var details, tracking, audit []byte
	err := row.Scan(
		&a.ID, &a.JobID, &a.Candidate.FullName, &a.Candidate.Email, &a.Candidate.Phone, &a.Status,
		&a.HRComments, &a.ReviewedBy, &reviewDate,
		&a.IsHired, &hiredDate,
		&a.CandidateConfirmed, &confirmedAt, &a.CandidateConfirmationToken,
		&a.PaymentRequired, &a.PaymentAmount, &a.PaymentCurrency, &a.PaymentCompleted,
		&a.PaymentTransactionID, &paymentDate, &a.PaymentMethod,
		&details, &a.PaymentReceiptKey, &a.PaymentToken,
		&a.PaymentVerified, &a.PaymentVerifiedBy, &verifiedAt,
		&a.PaymentVerificationNotes,
		&a.EmployeeCreated, &a.EmployeeID,
		&tracking, &a.TotalEmailsSent, &audit, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ReviewDate = timePtr(reviewDate)
	a.HiredDate = timePtr(hiredDate)
	a.CandidateConfirmationDate = timePtr(confirmedAt)
	a.PaymentDate = timePtr(paymentDate)
	a.PaymentVerificationDate = timePtr(verifiedAt)

	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.PaymentMethodDetails); err != nil {
			return nil, fmt.Errorf("decode payment_method_details: %w", err)
		}
	}
	a.EmailsTracking = domain.EmailsTracking{}
	if len(tracking) > 0 {
		if err := json.Unmarshal(tracking, &a.EmailsTracking); err != nil {
			return nil, fmt.Errorf("decode emails_tracking: %w", err)
		}
	}
	if len(audit) > 0 {
		if err := json.Unmarshal(audit, &a.AuditTrail); err != nil {
			return nil, fmt.Errorf("decode audit_trail: %w", err)
		}
	}
	return &a, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// auditJSON encodes an entry as a one-element array for "audit_trail || $n".
func auditJSON(e domain.AuditEntry) (string, error) {
	b, err := json.Marshal([]domain.AuditEntry{e})
	if err != nil {
		return "", fmt.Errorf("encode audit entry: %w", err)
	}
	return string(b), nil
}

// uniqueFields maps constraint names to the field a violation names.
var uniqueFields = []struct {
	fragment string
	err      error
}{
	{"employee_code", hiring.ErrEmployeeCodeTaken},
	{"username", hiring.ErrUsernameTaken},
	{"accounts_email", hiring.ErrEmailTaken},
	{"accounts_application", &hiring.Error{Kind: hiring.KindConflict, Field: "application_id", Message: "an account already exists for this application"}},
}

// translateUnique turns a unique_violation into the matching Conflict.
// Other errors are returned unchanged.
func translateUnique(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	for _, f := range uniqueFields {
		if strings.Contains(pqErr.Constraint, f.fragment) {
			return f.err
		}
	}
	if strings.Contains(pqErr.Constraint, "applications_job_email") {
		return hiring.Conflict("email", "this email has already applied to the job")
	}
	return hiring.Conflict(pqErr.Column, "duplicate value: %s", pqErr.Constraint)
}
