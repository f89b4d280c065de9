package domain

import "time"

// Role enumerates account roles. Provisioned accounts are always RoleEmployee.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	RoleAdmin    Role = "admin"
)

// AccountStatus enumerates account states.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// Account is an employee account created by the provisioner.
type Account struct {
	ID            string        `json:"id" db:"id"`
	EmployeeCode  string        `json:"employee_code" db:"employee_code"`
	Username      string        `json:"username" db:"username"`
	Email         string        `json:"email" db:"email"`
	FullName      string        `json:"full_name" db:"full_name"`
	PasswordHash  string        `json:"-" db:"password_hash"`
	Department    string        `json:"department" db:"department"`
	Role          Role          `json:"role" db:"role"`
	Salary        float64       `json:"salary" db:"salary"`
	JoiningDate   time.Time     `json:"joining_date" db:"joining_date"`
	Status        AccountStatus `json:"status" db:"status"`
	ApplicationID string        `json:"application_id" db:"application_id"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// Actor is an authenticated staff identity supplied by the auth layer.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// IsHR reports whether the actor may run HR-only operations.
func (a *Actor) IsHR() bool {
	return a != nil && a.ID != "" && (a.Role == RoleHR || a.Role == RoleAdmin)
}
