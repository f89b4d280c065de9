package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/service/hiring"
)

// AccountRepo implements hiring.ProvisioningStore.
type AccountRepo struct{ db *sql.DB }

// NewAccountRepo creates a Postgres-backed provisioning store.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

func (r *AccountRepo) AccountExistsForEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account email: %w", err)
	}
	return exists, nil
}

func (r *AccountRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// Provision locks the application row, reserves the next sequence value,
// inserts the account and finalizes the application in one transaction.
func (r *AccountRepo) Provision(ctx context.Context, req hiring.ProvisionRequest) (*domain.Account, *domain.Application, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin provision: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("[provision] rollback: %v", err)
		}
	}()

	app, err := scanApplication(tx.QueryRowContext(ctx,
		`SELECT `+appColumns+` FROM applications WHERE id = $1 FOR UPDATE`, req.ApplicationID))
	if err == sql.ErrNoRows {
		return nil, nil, hiring.NotFound("application not found")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock application: %w", err)
	}
	if err := hiring.CheckProvisionable(app); err != nil {
		return nil, nil, err
	}

	var seq int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO employee_sequences (key, value, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (key) DO UPDATE
			SET value = employee_sequences.value + 1, updated_at = NOW()
		RETURNING value
	`, req.SequenceKey).Scan(&seq)
	if err != nil {
		return nil, nil, fmt.Errorf("next employee sequence: %w", err)
	}
	code, err := req.BuildCode(seq)
	if err != nil {
		return nil, nil, err
	}

	acct := req.Account
	acct.EmployeeCode = code
	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts
			(id, employee_code, username, email, full_name, password_hash, department,
			 role, salary, joining_date, status, application_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, acct.ID, acct.EmployeeCode, acct.Username, acct.Email, acct.FullName, acct.PasswordHash,
		acct.Department, acct.Role, acct.Salary, acct.JoiningDate, acct.Status, acct.ApplicationID, acct.CreatedAt)
	if err != nil {
		if conflict := translateUnique(err); conflict != err {
			return nil, nil, conflict
		}
		return nil, nil, fmt.Errorf("insert account: %w", err)
	}

	audit := req.Audit
	if audit.Note == "" {
		audit.Note = code
	} else {
		audit.Note = code + " " + audit.Note
	}
	auditDoc, err := auditJSON(audit)
	if err != nil {
		return nil, nil, err
	}
	updated, err := scanApplication(tx.QueryRowContext(ctx, `
		UPDATE applications SET
			employee_created = TRUE,
			employee_id = $2,
			status = 'employee_created',
			audit_trail = audit_trail || $3::jsonb,
			updated_at = $4
		WHERE id = $1
		RETURNING `+appColumns,
		req.ApplicationID, acct.ID, auditDoc, acct.CreatedAt))
	if err != nil {
		return nil, nil, fmt.Errorf("finalize application: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit provision: %w", err)
	}
	return &acct, updated, nil
}

var _ hiring.ProvisioningStore = (*AccountRepo)(nil)
