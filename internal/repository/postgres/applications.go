package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/service/hiring"
)

// ApplicationRepo implements hiring.ApplicationRepository against PostgreSQL.
// Guarded mutations are single UPDATE ... WHERE <guard> RETURNING statements.
type ApplicationRepo struct{ db *sql.DB }

// NewApplicationRepo creates a Postgres-backed application repository.
func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

func (r *ApplicationRepo) Create(ctx context.Context, app *domain.Application) error {
	tracking, err := json.Marshal(app.EmailsTracking)
	if err != nil {
		return fmt.Errorf("encode emails_tracking: %w", err)
	}
	if app.EmailsTracking == nil {
		tracking = []byte("{}")
	}
	audit, err := json.Marshal(app.AuditTrail)
	if err != nil {
		return fmt.Errorf("encode audit_trail: %w", err)
	}
	if app.AuditTrail == nil {
		audit = []byte("[]")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO applications
			(id, job_id, candidate_name, candidate_email, candidate_phone, status,
			 emails_tracking, total_emails_sent, audit_trail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7::jsonb, 0, $8::jsonb, $9, $9)
	`, app.ID, app.JobID, app.Candidate.FullName, app.Candidate.Email, app.Candidate.Phone,
		app.Status, string(tracking), string(audit), app.CreatedAt)
	if err != nil {
		if conflict := translateUnique(err); conflict != err {
			return conflict
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (r *ApplicationRepo) Get(ctx context.Context, id string) (*domain.Application, error) {
	app, err := scanApplication(r.db.QueryRowContext(ctx,
		`SELECT `+appColumns+` FROM applications WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, hiring.NotFound("application not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// current reads the row for miss classification. A missing row is nil.
func (r *ApplicationRepo) current(ctx context.Context, id string) (*domain.Application, error) {
	app, err := r.Get(ctx, id)
	if errors.Is(err, hiring.ErrNotFound) {
		return nil, nil
	}
	return app, err
}

func (r *ApplicationRepo) UpdateReview(ctx context.Context, id string, from domain.ApplicationStatus, u hiring.ReviewUpdate) (*domain.Application, error) {
	audit, err := auditJSON(u.Audit)
	if err != nil {
		return nil, err
	}
	app, err := scanApplication(r.db.QueryRowContext(ctx, `
		UPDATE applications SET
			status = $3,
			hr_comments = NULLIF($4,''),
			reviewed_by = $5,
			review_date = $6,
			is_hired = CASE WHEN $7 THEN $8 ELSE is_hired END,
			hired_date = CASE WHEN $7 AND $8 THEN $6 WHEN $7 THEN NULL ELSE hired_date END,
			candidate_confirmation_token = CASE WHEN $7 THEN NULLIF($9,'') ELSE candidate_confirmation_token END,
			audit_trail = audit_trail || $10::jsonb,
			updated_at = $6
		WHERE id = $1 AND status = $2
		RETURNING `+appColumns,
		id, from, u.Status, u.Comment, u.ReviewedBy, u.ReviewedAt,
		u.SetHiring, u.IsHired, u.ConfirmationToken, audit))
	if err == sql.ErrNoRows {
		cur, err := r.current(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, hiring.NotFound("application not found")
		}
		return nil, hiring.Conflict("status", "application status changed to %s", cur.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepo) ConfirmHiring(ctx context.Context, id, token string, u hiring.ConfirmationUpdate) (*domain.Application, error) {
	audit, err := auditJSON(u.Audit)
	if err != nil {
		return nil, err
	}
	app, err := scanApplication(r.db.QueryRowContext(ctx, `
		UPDATE applications SET
			candidate_confirmed = TRUE,
			candidate_confirmation_date = $3,
			status = 'candidate_confirmed',
			payment_token = $4,
			payment_required = TRUE,
			payment_amount = $5,
			payment_currency = $6,
			audit_trail = audit_trail || $7::jsonb,
			updated_at = $3
		WHERE id = $1 AND candidate_confirmation_token = $2
		  AND is_hired AND NOT candidate_confirmed AND status = 'hired'
		RETURNING `+appColumns,
		id, token, u.ConfirmedAt, u.PaymentToken, u.PaymentAmount, u.PaymentCurrency, audit))
	if err == sql.ErrNoRows {
		cur, err := r.current(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, hiring.ClassifyConfirmationMiss(cur, token)
	}
	if err != nil {
		return nil, fmt.Errorf("confirm hiring: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepo) GetByPaymentToken(ctx context.Context, id, token string) (*domain.Application, error) {
	app, err := scanApplication(r.db.QueryRowContext(ctx, `
		SELECT `+appColumns+` FROM applications
		WHERE id = $1 AND payment_token = $2 AND candidate_confirmed
	`, id, token))
	if err == sql.ErrNoRows {
		return nil, hiring.NotFound("application not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get by payment token: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepo) SubmitPayment(ctx context.Context, id, token string, u hiring.PaymentUpdate) (*domain.Application, error) {
	audit, err := auditJSON(u.Audit)
	if err != nil {
		return nil, err
	}
	var details interface{}
	if len(u.Details) > 0 {
		b, err := json.Marshal(u.Details)
		if err != nil {
			return nil, fmt.Errorf("encode payment details: %w", err)
		}
		details = string(b)
	}
	app, err := scanApplication(r.db.QueryRowContext(ctx, `
		UPDATE applications SET
			payment_transaction_id = $3,
			payment_completed = TRUE,
			payment_date = $4,
			payment_method = $5,
			payment_method_details = $6::jsonb,
			payment_receipt_key = NULLIF($7,''),
			status = 'payment_submitted',
			audit_trail = audit_trail || $8::jsonb,
			updated_at = $9
		WHERE id = $1 AND payment_token = $2
		  AND candidate_confirmed AND NOT payment_completed AND status = 'candidate_confirmed'
		RETURNING `+appColumns,
		id, token, u.TransactionID, u.PaidAt, u.Method, details, u.ReceiptKey, audit, u.Audit.Timestamp))
	if err == sql.ErrNoRows {
		cur, err := r.current(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, hiring.ClassifyPaymentMiss(cur, token)
	}
	if err != nil {
		return nil, fmt.Errorf("submit payment: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepo) VerifyPayment(ctx context.Context, id string, u hiring.VerificationUpdate) (*domain.Application, error) {
	audit, err := auditJSON(u.Audit)
	if err != nil {
		return nil, err
	}
	app, err := scanApplication(r.db.QueryRowContext(ctx, `
		UPDATE applications SET
			payment_verified = $2,
			payment_verified_by = $3,
			payment_verification_date = $4,
			payment_verification_notes = NULLIF($5,''),
			status = $6,
			audit_trail = audit_trail || $7::jsonb,
			updated_at = $4
		WHERE id = $1 AND payment_completed AND COALESCE(payment_transaction_id,'') <> ''
		  AND status = 'payment_submitted'
		  AND NOT (payment_verification_date IS NOT NULL AND payment_verified = $2)
		RETURNING `+appColumns,
		id, u.IsValid, u.VerifiedBy, u.VerifiedAt, u.Note, u.Status(), audit))
	if err == sql.ErrNoRows {
		cur, err := r.current(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, hiring.ClassifyVerificationMiss(cur, u.IsValid)
	}
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	return app, nil
}

// RecordEmail updates the kind's entry and the total in one statement. SET
// expressions read the pre-update row, so the total grows only when the
// stored sent flag was false.
func (r *ApplicationRepo) RecordEmail(ctx context.Context, id string, kind domain.EmailKind, emailType string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE applications SET
			total_emails_sent = total_emails_sent +
				CASE WHEN COALESCE((emails_tracking->$2::text->>'sent')::boolean, FALSE) THEN 0 ELSE 1 END,
			emails_tracking = jsonb_set(
				emails_tracking,
				ARRAY[$2::text],
				COALESCE(emails_tracking->$2::text, '{"opened": false}'::jsonb) || jsonb_build_object(
					'sent', TRUE,
					'sent_date', $3::timestamptz,
					'email_type', $4::text,
					'attempts', COALESCE((emails_tracking->$2::text->>'attempts')::int, 0) + 1),
				TRUE),
			updated_at = $3
		WHERE id = $1
	`, id, string(kind), at, emailType)
	if err != nil {
		return fmt.Errorf("record email: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return hiring.NotFound("application not found")
	}
	return nil
}

func (r *ApplicationRepo) MarkEmailOpened(ctx context.Context, id string, kind domain.EmailKind, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE applications SET
			emails_tracking = jsonb_set(
				emails_tracking,
				ARRAY[$2::text],
				(emails_tracking->$2::text) || jsonb_build_object('opened', TRUE, 'opened_date', $3::timestamptz))
		WHERE id = $1
		  AND COALESCE((emails_tracking->$2::text->>'sent')::boolean, FALSE)
		  AND NOT COALESCE((emails_tracking->$2::text->>'opened')::boolean, FALSE)
	`, id, string(kind), at)
	if err != nil {
		return fmt.Errorf("mark email opened: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("mark email opened: %w", err)
	}
	if !exists {
		return hiring.NotFound("application not found")
	}
	return nil
}

var _ hiring.ApplicationRepository = (*ApplicationRepo)(nil)
