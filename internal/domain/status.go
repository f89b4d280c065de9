package domain

import "fmt"

// ApplicationStatus enumerates the lifecycle states of a job application.
type ApplicationStatus string

const (
	StatusPending            ApplicationStatus = "pending"
	StatusUnderReview        ApplicationStatus = "under_review"
	StatusShortlisted        ApplicationStatus = "shortlisted"
	StatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	StatusHired              ApplicationStatus = "hired"
	StatusRejected           ApplicationStatus = "rejected"
	StatusCandidateConfirmed ApplicationStatus = "candidate_confirmed"
	StatusPaymentSubmitted   ApplicationStatus = "payment_submitted"
	StatusPaymentVerified    ApplicationStatus = "payment_verified"
	StatusPaymentRejected    ApplicationStatus = "payment_rejected"
	StatusEmployeeCreated    ApplicationStatus = "employee_created"
)

var allStatuses = []ApplicationStatus{
	StatusPending,
	StatusUnderReview,
	StatusShortlisted,
	StatusInterviewScheduled,
	StatusHired,
	StatusRejected,
	StatusCandidateConfirmed,
	StatusPaymentSubmitted,
	StatusPaymentVerified,
	StatusPaymentRejected,
	StatusEmployeeCreated,
}

// reviewRank orders the HR review stages. Review stages may only move forward.
var reviewRank = map[ApplicationStatus]int{
	StatusPending:            0,
	StatusUnderReview:        1,
	StatusShortlisted:        2,
	StatusInterviewScheduled: 3,
}

// transitions lists every legal edge of the pipeline. Review-stage forward
// moves are added in init from reviewRank.
var transitions = map[ApplicationStatus]map[ApplicationStatus]bool{
	StatusHired: {
		StatusHired:              true, // re-issue revokes the previous confirmation link
		StatusRejected:           true,
		StatusCandidateConfirmed: true,
	},
	StatusCandidateConfirmed: {StatusPaymentSubmitted: true},
	StatusPaymentSubmitted: {
		StatusPaymentVerified: true,
		StatusPaymentRejected: true,
	},
	StatusPaymentVerified: {StatusEmployeeCreated: true},
}

func init() {
	for from, fromRank := range reviewRank {
		edges := map[ApplicationStatus]bool{
			StatusHired:    true,
			StatusRejected: true,
		}
		for to, toRank := range reviewRank {
			if toRank > fromRank {
				edges[to] = true
			}
		}
		transitions[from] = edges
	}
}

// ParseStatus converts a raw string into a known status.
func ParseStatus(s string) (ApplicationStatus, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// Valid reports whether s is a member of the closed status enumeration.
func (s ApplicationStatus) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// IsTerminal returns true if no transition leaves the status.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusPaymentRejected || s == StatusEmployeeCreated
}

// IsReviewStage returns true for the HR review stages that precede a decision.
func (s ApplicationStatus) IsReviewStage() bool {
	_, ok := reviewRank[s]
	return ok
}

// HRSettable returns true for statuses an HR reviewer may set directly.
// The remaining statuses are reached only through token-gated or
// verification operations.
func (s ApplicationStatus) HRSettable() bool {
	switch s {
	case StatusUnderReview, StatusShortlisted, StatusInterviewScheduled, StatusHired, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether the pipeline allows moving from one status to another.
func CanTransition(from, to ApplicationStatus) bool {
	return transitions[from][to]
}
