package hiring

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/pkg/logger"
	"github.com/ignite/onboarding/internal/service/identity"
	"github.com/ignite/onboarding/internal/service/notify"
)

const (
	maxUsernameAttempts  = 50
	minTempPasswordLen   = 8
	generatedPasswordLen = 14
	defaultDepartment    = "General"
	provisionLockTTL     = 30 * time.Second
)

// Overrides are HR-supplied values for the new account.
type Overrides struct {
	TempPassword string     `json:"temp_password,omitempty"`
	JoiningDate  *time.Time `json:"joining_date,omitempty"`
	Salary       *float64   `json:"salary,omitempty"`
}

// ProvisionResult is returned by CreateAccount. TempPassword is the
// plaintext credential and is only ever returned here.
type ProvisionResult struct {
	Account      *domain.Account     `json:"account"`
	Application  *domain.Application `json:"application"`
	TempPassword string              `json:"-"`
	EmailSent    bool                `json:"email_sent"`
}

// Provisioner creates employee accounts for verified candidates.
type Provisioner struct {
	apps     ApplicationRepository
	jobs     JobRepository
	store    ProvisioningStore
	locker   Locker
	mailer   Mailer
	settings Settings
	cost     int
	now      func() time.Time
	log      *logger.Logger
}

// NewProvisioner creates a provisioner. locker may be nil when a single
// process owns the store.
func NewProvisioner(apps ApplicationRepository, jobs JobRepository, store ProvisioningStore, locker Locker, mailer Mailer, settings Settings) *Provisioner {
	return &Provisioner{
		apps:     apps,
		jobs:     jobs,
		store:    store,
		locker:   locker,
		mailer:   mailer,
		settings: settings,
		cost:     bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Default().With("component", "provisioner"),
	}
}

// SetClock overrides the time source.
func (p *Provisioner) SetClock(now func() time.Time) { p.now = now }

// SetHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (p *Provisioner) SetHashCost(cost int) { p.cost = cost }

// CreateAccount provisions the employee account for a verified application.
func (p *Provisioner) CreateAccount(ctx context.Context, actor *domain.Actor, id string, o Overrides) (*ProvisionResult, error) {
	if !actor.IsHR() {
		return nil, Unauthorized("HR access required")
	}

	if p.locker != nil {
		release, ok, err := p.locker.TryLock(ctx, "provision:"+id, provisionLockTTL)
		if err != nil {
			return nil, Internal(err, "acquire provisioning lock")
		}
		if !ok {
			return nil, Conflict("application", "account provisioning is already in progress")
		}
		defer release()
	}

	app, err := p.apps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckProvisionable(app); err != nil {
		return nil, err
	}
	exists, err := p.store.AccountExistsForEmail(ctx, app.Candidate.Email)
	if err != nil {
		return nil, Internal(err, "check existing account")
	}
	if exists {
		return nil, ErrEmailTaken
	}

	password := o.TempPassword
	if password != "" {
		if len(password) < minTempPasswordLen {
			return nil, Validation("temp_password", "temporary password must be at least %d characters", minTempPasswordLen)
		}
	} else if password, err = GeneratePassword(generatedPasswordLen); err != nil {
		return nil, Internal(err, "generate temporary password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, Internal(err, "hash temporary password")
	}

	now := p.now()
	department := defaultDepartment
	job, err := p.lookupJob(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	if job != nil && job.Department != "" {
		department = job.Department
	}
	joining := now
	if o.JoiningDate != nil {
		joining = o.JoiningDate.UTC()
	}
	var salary float64
	if o.Salary != nil {
		if *o.Salary < 0 {
			return nil, Validation("salary", "salary must not be negative")
		}
		salary = *o.Salary
	}

	year := now.Year()
	role := domain.RoleEmployee
	req := ProvisionRequest{
		ApplicationID: id,
		SequenceKey:   identity.SequenceKey(year, department, role),
		BuildCode: func(seq int) (string, error) {
			code, err := identity.EmployeeCode(year, department, role, seq)
			if errors.Is(err, identity.ErrSequenceExhausted) {
				return "", Conflict("employee_code", "employee code sequence %s is exhausted", identity.SequenceKey(year, department, role))
			}
			return code, err
		},
		Account: domain.Account{
			Email:         app.Candidate.Email,
			FullName:      app.Candidate.FullName,
			PasswordHash:  string(hash),
			Department:    department,
			Role:          role,
			Salary:        salary,
			JoiningDate:   joining,
			Status:        domain.AccountActive,
			ApplicationID: id,
			CreatedAt:     now,
		},
		Audit: domain.AuditEntry{
			Actor:     actor.ID,
			Timestamp: now,
			Action:    domain.AuditEmployeeCreated,
		},
	}

	account, updated, err := p.provision(ctx, identity.Slugify(app.Candidate.FullName), req)
	if err != nil {
		return nil, err
	}
	p.log.Info("employee account created", "application_id", id, "employee_code", account.EmployeeCode,
		"username", account.Username, "actor", actor.ID)

	res := &ProvisionResult{Account: account, Application: updated, TempPassword: password}
	res.EmailSent = p.sendWelcome(ctx, updated, account, password)
	if res.EmailSent {
		if fresh, err := p.apps.Get(ctx, id); err == nil {
			res.Application = fresh
		}
	}
	return res, nil
}

// provision walks the username candidates for base until one commits.
func (p *Provisioner) provision(ctx context.Context, base string, req ProvisionRequest) (*domain.Account, *domain.Application, error) {
	for n := 0; n < maxUsernameAttempts; n++ {
		username := identity.UsernameCandidate(base, n)
		taken, err := p.store.UsernameTaken(ctx, username)
		if err != nil {
			return nil, nil, Internal(err, "check username")
		}
		if taken {
			continue
		}
		req.Account.ID = uuid.New().String()
		req.Account.Username = username
		req.Audit.Note = username

		account, app, err := p.store.Provision(ctx, req)
		if errors.Is(err, ErrUsernameTaken) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return account, app, nil
	}
	return nil, nil, Conflict("username", "no free username for %q after %d attempts", base, maxUsernameAttempts)
}

func (p *Provisioner) sendWelcome(ctx context.Context, app *domain.Application, account *domain.Account, password string) bool {
	if p.mailer == nil {
		return false
	}
	data := map[string]any{
		"candidate_name": account.FullName,
		"employee_code":  account.EmployeeCode,
		"username":       account.Username,
		"temp_password":  password,
		"joining_date":   account.JoiningDate.Format("2006-01-02"),
		"login_url":      p.settings.LoginURL,
	}
	err := p.mailer.Send(ctx, notify.Email{
		To:            account.Email,
		Template:      notify.TemplateWelcome,
		Data:          data,
		ApplicationID: app.ID,
		Kind:          domain.EmailWelcome,
	})
	if err != nil {
		p.log.Warn("welcome email failed", "application_id", app.ID, "error", err)
		return false
	}
	if err := p.apps.RecordEmail(ctx, app.ID, domain.EmailWelcome, "welcome", p.now()); err != nil {
		p.log.Error("email ledger update failed", "application_id", app.ID, "kind", domain.EmailWelcome, "error", err)
	}
	return true
}

// lookupJob returns nil for a missing job so the account falls back to the
// default department. Any other store failure is Internal.
func (p *Provisioner) lookupJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if jobID == "" || p.jobs == nil {
		return nil, nil
	}
	job, err := p.jobs.GetJob(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, Internal(err, "load job")
	}
	return job, nil
}
