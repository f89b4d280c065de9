// Package memory is an in-process implementation of the hiring stores. A
// single mutex serializes every operation, which gives each guarded update
// the same all-or-nothing behavior as the Postgres statements.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/service/hiring"
)

// Store holds applications, jobs, accounts and employee-code sequences.
type Store struct {
	mu        sync.Mutex
	apps      map[string]*domain.Application
	jobs      map[string]*domain.Job
	accounts  map[string]*domain.Account
	emails    map[string]string // lower(email) -> account id
	usernames map[string]string
	codes     map[string]string
	sequences map[string]int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		apps:      make(map[string]*domain.Application),
		jobs:      make(map[string]*domain.Job),
		accounts:  make(map[string]*domain.Account),
		emails:    make(map[string]string),
		usernames: make(map[string]string),
		codes:     make(map[string]string),
		sequences: make(map[string]int),
	}
}

// PutJob adds or replaces a job posting.
func (s *Store) PutJob(job domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := job
	s.jobs[job.ID] = &j
}

// GetJob implements hiring.JobRepository.
func (s *Store) GetJob(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, hiring.NotFound("job not found")
	}
	out := *j
	return &out, nil
}

// Create implements hiring.ApplicationRepository.
func (s *Store) Create(_ context.Context, app *domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return hiring.Conflict("id", "application %s already exists", app.ID)
	}
	for _, existing := range s.apps {
		if existing.JobID == app.JobID && strings.EqualFold(existing.Candidate.Email, app.Candidate.Email) {
			return hiring.Conflict("email", "this email has already applied to the job")
		}
	}
	stored := clone(app)
	if stored.EmailsTracking == nil {
		stored.EmailsTracking = domain.EmailsTracking{}
	}
	s.apps[app.ID] = stored
	return nil
}

// Get implements hiring.ApplicationRepository.
func (s *Store) Get(_ context.Context, id string) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, hiring.NotFound("application not found")
	}
	return clone(app), nil
}

// UpdateReview implements hiring.ApplicationRepository.
func (s *Store) UpdateReview(_ context.Context, id string, from domain.ApplicationStatus, u hiring.ReviewUpdate) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, hiring.NotFound("application not found")
	}
	if app.Status != from || !domain.CanTransition(from, u.Status) {
		return nil, hiring.Conflict("status", "application status changed to %s", app.Status)
	}

	at := u.ReviewedAt
	app.Status = u.Status
	app.HRComments = u.Comment
	app.ReviewedBy = u.ReviewedBy
	app.ReviewDate = &at
	if u.SetHiring {
		app.IsHired = u.IsHired
		app.CandidateConfirmationToken = u.ConfirmationToken
		if u.IsHired {
			app.HiredDate = &at
		} else {
			app.HiredDate = nil
		}
	}
	app.AuditTrail = append(app.AuditTrail, u.Audit)
	app.UpdatedAt = at
	return clone(app), nil
}

// ConfirmHiring implements hiring.ApplicationRepository.
func (s *Store) ConfirmHiring(_ context.Context, id, token string, u hiring.ConfirmationUpdate) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok || !hiring.ConfirmationGuard(app, token) {
		return nil, hiring.ClassifyConfirmationMiss(cloneOrNil(app, ok), token)
	}

	at := u.ConfirmedAt
	app.CandidateConfirmed = true
	app.CandidateConfirmationDate = &at
	app.Status = domain.StatusCandidateConfirmed
	app.PaymentToken = u.PaymentToken
	app.PaymentRequired = true
	app.PaymentAmount = u.PaymentAmount
	app.PaymentCurrency = u.PaymentCurrency
	app.AuditTrail = append(app.AuditTrail, u.Audit)
	app.UpdatedAt = at
	return clone(app), nil
}

// GetByPaymentToken implements hiring.ApplicationRepository.
func (s *Store) GetByPaymentToken(_ context.Context, id, token string) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok || !hiring.PaymentTokenGuard(app, token) {
		return nil, hiring.NotFound("application not found")
	}
	return clone(app), nil
}

// SubmitPayment implements hiring.ApplicationRepository.
func (s *Store) SubmitPayment(_ context.Context, id, token string, u hiring.PaymentUpdate) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok || !hiring.PaymentGuard(app, token) {
		return nil, hiring.ClassifyPaymentMiss(cloneOrNil(app, ok), token)
	}

	paid := u.PaidAt
	app.PaymentTransactionID = u.TransactionID
	app.PaymentCompleted = true
	app.PaymentDate = &paid
	app.PaymentMethod = u.Method
	app.PaymentMethodDetails = copyDetails(u.Details)
	app.PaymentReceiptKey = u.ReceiptKey
	app.Status = domain.StatusPaymentSubmitted
	app.AuditTrail = append(app.AuditTrail, u.Audit)
	app.UpdatedAt = u.Audit.Timestamp
	return clone(app), nil
}

// VerifyPayment implements hiring.ApplicationRepository.
func (s *Store) VerifyPayment(_ context.Context, id string, u hiring.VerificationUpdate) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok || !hiring.VerificationGuard(app, u.IsValid) {
		return nil, hiring.ClassifyVerificationMiss(cloneOrNil(app, ok), u.IsValid)
	}

	at := u.VerifiedAt
	app.PaymentVerified = u.IsValid
	app.PaymentVerifiedBy = u.VerifiedBy
	app.PaymentVerificationDate = &at
	app.PaymentVerificationNotes = u.Note
	app.Status = u.Status()
	app.AuditTrail = append(app.AuditTrail, u.Audit)
	app.UpdatedAt = at
	return clone(app), nil
}

// RecordEmail implements hiring.ApplicationRepository.
func (s *Store) RecordEmail(_ context.Context, id string, kind domain.EmailKind, emailType string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return hiring.NotFound("application not found")
	}
	if app.EmailsTracking == nil {
		app.EmailsTracking = domain.EmailsTracking{}
	}
	app.TotalEmailsSent += app.EmailsTracking.Record(kind, emailType, at)
	app.UpdatedAt = at
	return nil
}

// MarkEmailOpened implements hiring.ApplicationRepository.
func (s *Store) MarkEmailOpened(_ context.Context, id string, kind domain.EmailKind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return hiring.NotFound("application not found")
	}
	app.EmailsTracking.MarkOpened(kind, at)
	return nil
}

// AccountExistsForEmail implements hiring.ProvisioningStore.
func (s *Store) AccountExistsForEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.emails[strings.ToLower(email)]
	return ok, nil
}

// UsernameTaken implements hiring.ProvisioningStore.
func (s *Store) UsernameTaken(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.usernames[username]
	return ok, nil
}

// Provision implements hiring.ProvisioningStore. Every check runs before
// any write, so a failure leaves the sequence and the application as they were.
func (s *Store) Provision(_ context.Context, req hiring.ProvisionRequest) (*domain.Account, *domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[req.ApplicationID]
	if !ok {
		return nil, nil, hiring.NotFound("application not found")
	}
	if err := hiring.CheckProvisionable(app); err != nil {
		return nil, nil, err
	}
	email := strings.ToLower(req.Account.Email)
	if _, taken := s.emails[email]; taken {
		return nil, nil, hiring.ErrEmailTaken
	}
	if _, taken := s.usernames[req.Account.Username]; taken {
		return nil, nil, hiring.ErrUsernameTaken
	}

	seq := s.sequences[req.SequenceKey] + 1
	code, err := req.BuildCode(seq)
	if err != nil {
		return nil, nil, err
	}
	if _, taken := s.codes[code]; taken {
		return nil, nil, hiring.ErrEmployeeCodeTaken
	}

	acct := req.Account
	acct.EmployeeCode = code
	s.sequences[req.SequenceKey] = seq
	s.accounts[acct.ID] = &acct
	s.emails[email] = acct.ID
	s.usernames[acct.Username] = acct.ID
	s.codes[code] = acct.ID

	app.EmployeeCreated = true
	app.EmployeeID = acct.ID
	app.Status = domain.StatusEmployeeCreated
	audit := req.Audit
	if audit.Note == "" {
		audit.Note = code
	} else {
		audit.Note = code + " " + audit.Note
	}
	app.AuditTrail = append(app.AuditTrail, audit)
	app.UpdatedAt = acct.CreatedAt

	out := acct
	return &out, clone(app), nil
}

// Accounts returns every account ordered by employee code.
func (s *Store) Accounts() []domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeCode < out[j].EmployeeCode })
	return out
}

// Sequence returns the current value of a named counter.
func (s *Store) Sequence(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequences[key]
}

func cloneOrNil(app *domain.Application, ok bool) *domain.Application {
	if !ok {
		return nil
	}
	return clone(app)
}

func clone(app *domain.Application) *domain.Application {
	out := *app
	out.PaymentMethodDetails = copyDetails(app.PaymentMethodDetails)
	if app.EmailsTracking != nil {
		out.EmailsTracking = make(domain.EmailsTracking, len(app.EmailsTracking))
		for k, v := range app.EmailsTracking {
			out.EmailsTracking[k] = v
		}
	}
	out.AuditTrail = append([]domain.AuditEntry(nil), app.AuditTrail...)
	return &out
}

func copyDetails(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var (
	_ hiring.ApplicationRepository = (*Store)(nil)
	_ hiring.JobRepository         = (*Store)(nil)
	_ hiring.ProvisioningStore     = (*Store)(nil)
)
