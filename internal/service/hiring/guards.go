package hiring

import (
	"crypto/subtle"

	"github.com/ignite/onboarding/internal/domain"
)

// The Classify* functions explain why a conditional update matched no row.
// Stores call them with a fresh read (app may be nil) after a miss, so every
// store reports the same error for the same state.

// ClassifyConfirmationMiss explains a failed ConfirmHiring update.
func ClassifyConfirmationMiss(app *domain.Application, token string) error {
	if app == nil || !app.IsHired || !tokenEqual(app.CandidateConfirmationToken, token) {
		return NotFound("application not found")
	}
	if app.CandidateConfirmed {
		return Conflict("candidate_confirmed", "hiring has already been confirmed")
	}
	return Conflict("status", "application cannot be confirmed from status %s", app.Status)
}

// ClassifyPaymentMiss explains a failed SubmitPayment update. A completed
// payment is reported before the token is looked at.
func ClassifyPaymentMiss(app *domain.Application, token string) error {
	if app == nil {
		return NotFound("application not found")
	}
	if app.PaymentCompleted {
		return Conflict("payment_completed", "payment has already been submitted")
	}
	if !app.CandidateConfirmed || !tokenEqual(app.PaymentToken, token) {
		return NotFound("application not found")
	}
	return Conflict("status", "payment cannot be submitted from status %s", app.Status)
}

// ClassifyVerificationMiss explains a failed VerifyPayment update.
func ClassifyVerificationMiss(app *domain.Application, isValid bool) error {
	if app == nil {
		return NotFound("application not found")
	}
	if app.PaymentTransactionID == "" || !app.PaymentCompleted {
		return Validation("payment_transaction_id", "no payment has been submitted for this application")
	}
	if app.PaymentVerifiedAs(isValid) {
		if isValid {
			return Conflict("payment_verified", "payment has already been verified")
		}
		return Conflict("payment_verified", "payment has already been rejected")
	}
	to := VerificationUpdate{IsValid: isValid}.Status()
	return Conflict("status", "cannot move from %s to %s", app.Status, to)
}

// CheckProvisionable returns the first unmet precondition for creating an
// employee account from app.
func CheckProvisionable(app *domain.Application) error {
	if app == nil {
		return NotFound("application not found")
	}
	if !app.PaymentVerified {
		return Validation("payment_verified", "payment has not been verified")
	}
	if !app.CandidateConfirmed {
		return Validation("candidate_confirmed", "candidate has not confirmed the offer")
	}
	if app.EmployeeCreated {
		return Conflict("employee_created", "an employee account was already created for this application")
	}
	if !domain.CanTransition(app.Status, domain.StatusEmployeeCreated) {
		return Conflict("status", "cannot create an account from status %s", app.Status)
	}
	return nil
}

// ConfirmationGuard reports whether ConfirmHiring may apply to app.
func ConfirmationGuard(app *domain.Application, token string) bool {
	return app.IsHired && !app.CandidateConfirmed && app.Status == domain.StatusHired &&
		tokenEqual(app.CandidateConfirmationToken, token)
}

// PaymentGuard reports whether SubmitPayment may apply to app.
func PaymentGuard(app *domain.Application, token string) bool {
	return app.CandidateConfirmed && !app.PaymentCompleted && app.Status == domain.StatusCandidateConfirmed &&
		tokenEqual(app.PaymentToken, token)
}

// PaymentTokenGuard reports whether token unlocks the payment view of app.
func PaymentTokenGuard(app *domain.Application, token string) bool {
	return app.PaymentTokenLive() && tokenEqual(app.PaymentToken, token)
}

// VerificationGuard reports whether VerifyPayment may apply to app.
func VerificationGuard(app *domain.Application, isValid bool) bool {
	return app.PaymentCompleted && app.PaymentTransactionID != "" &&
		app.Status == domain.StatusPaymentSubmitted && !app.PaymentVerifiedAs(isValid)
}

func tokenEqual(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
