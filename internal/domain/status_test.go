package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ApplicationStatus
		want     bool
	}{
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusHired, true},
		{StatusPending, StatusRejected, true},
		{StatusUnderReview, StatusShortlisted, true},
		{StatusShortlisted, StatusInterviewScheduled, true},
		{StatusInterviewScheduled, StatusHired, true},
		{StatusInterviewScheduled, StatusRejected, true},
		{StatusShortlisted, StatusUnderReview, false},
		{StatusPending, StatusPending, false},
		{StatusHired, StatusHired, true},
		{StatusHired, StatusCandidateConfirmed, true},
		{StatusHired, StatusPending, false},
		{StatusCandidateConfirmed, StatusPaymentSubmitted, true},
		{StatusCandidateConfirmed, StatusRejected, false},
		{StatusPaymentSubmitted, StatusPaymentVerified, true},
		{StatusPaymentSubmitted, StatusPaymentRejected, true},
		{StatusPaymentVerified, StatusEmployeeCreated, true},
		{StatusPaymentVerified, StatusPaymentRejected, false},
		{StatusRejected, StatusHired, false},
		{StatusPaymentRejected, StatusPaymentVerified, false},
		{StatusEmployeeCreated, StatusHired, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, s := range allStatuses {
		if !s.IsTerminal() {
			continue
		}
		for _, to := range allStatuses {
			if CanTransition(s, to) {
				t.Errorf("terminal status %s has edge to %s", s, to)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("payment_rejected")
	if err != nil || st != StatusPaymentRejected {
		t.Fatalf("ParseStatus(payment_rejected) = %q, %v", st, err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatal("expected error for out-of-domain status")
	}
	if ApplicationStatus("Hired").Valid() {
		t.Fatal("status matching must be exact")
	}
}

func TestHRSettable(t *testing.T) {
	for _, s := range []ApplicationStatus{StatusCandidateConfirmed, StatusPaymentSubmitted, StatusPaymentVerified, StatusPaymentRejected, StatusEmployeeCreated, StatusPending} {
		if s.HRSettable() {
			t.Errorf("%s must not be settable by HR", s)
		}
	}
	if !StatusHired.HRSettable() || !StatusRejected.HRSettable() {
		t.Error("hired and rejected must be settable by HR")
	}
}
