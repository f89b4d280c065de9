package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/service/hiring"
)

// JobRepo reads job postings.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job repository.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

func (r *JobRepo) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	j := &domain.Job{}
	var deadline sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, department, capacity, deadline
		FROM jobs
		WHERE id = $1
	`, id).Scan(&j.ID, &j.Title, &j.Department, &j.Capacity, &deadline)
	if err == sql.ErrNoRows {
		return nil, hiring.NotFound("job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	j.Deadline = timePtr(deadline)
	return j, nil
}

var _ hiring.JobRepository = (*JobRepo)(nil)
