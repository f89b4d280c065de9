// Package hiring implements the hiring and onboarding workflow: HR review
// decisions, the candidate's token-gated confirmation and payment steps,
// payment verification and employee account provisioning.
//
// State changes go through ApplicationRepository, whose mutating methods
// are single conditional updates. Emails are dispatched after the state
// change commits and recorded in the ledger only when the dispatch is
// confirmed.
package hiring
