package domain

import "time"

// EmailKind identifies one tracked notification slot on an application.
type EmailKind string

const (
	EmailHireReject          EmailKind = "hireRejectEmail"
	EmailPaymentRequest      EmailKind = "paymentRequestEmail"
	EmailPaymentConfirmation EmailKind = "paymentConfirmationEmail"
	EmailHRPaymentNotice     EmailKind = "hrPaymentNotificationEmail"
	EmailPaymentVerification EmailKind = "paymentVerificationEmail"
	EmailWelcome             EmailKind = "welcomeEmail"
)

// EmailKinds lists every tracked kind in pipeline order.
var EmailKinds = []EmailKind{
	EmailHireReject,
	EmailPaymentRequest,
	EmailPaymentConfirmation,
	EmailHRPaymentNotice,
	EmailPaymentVerification,
	EmailWelcome,
}

// Valid reports whether k is a tracked email kind.
func (k EmailKind) Valid() bool {
	for _, known := range EmailKinds {
		if k == known {
			return true
		}
	}
	return false
}

// EmailRecord is the per-kind ledger entry.
type EmailRecord struct {
	Sent       bool       `json:"sent"`
	SentDate   *time.Time `json:"sent_date,omitempty"`
	EmailType  string     `json:"email_type,omitempty"`
	Opened     bool       `json:"opened"`
	OpenedDate *time.Time `json:"opened_date,omitempty"`
	Attempts   int        `json:"attempts"`
}

// EmailsTracking is the ledger embedded on each application.
type EmailsTracking map[EmailKind]EmailRecord

// Record marks kind as sent and reports how much totalEmailsSent must grow.
// The counter only grows when the kind's sent flag flips, which keeps the
// total equal to the number of true sent flags across resends.
func (t EmailsTracking) Record(kind EmailKind, emailType string, at time.Time) (increment int) {
	rec := t[kind]
	if !rec.Sent {
		increment = 1
	}
	rec.Sent = true
	rec.SentDate = &at
	rec.EmailType = emailType
	rec.Attempts++
	t[kind] = rec
	return increment
}

// MarkOpened flags kind as opened. Returns false if the kind was never sent
// or was already opened.
func (t EmailsTracking) MarkOpened(kind EmailKind, at time.Time) bool {
	rec, ok := t[kind]
	if !ok || !rec.Sent || rec.Opened {
		return false
	}
	rec.Opened = true
	rec.OpenedDate = &at
	t[kind] = rec
	return true
}

// SentCount returns the number of kinds whose sent flag is true.
func (t EmailsTracking) SentCount() int {
	n := 0
	for _, rec := range t {
		if rec.Sent {
			n++
		}
	}
	return n
}

// EmailTrackingSummary is the HR-facing read model of the ledger.
type EmailTrackingSummary struct {
	ApplicationID   string         `json:"application_id"`
	TotalEmailsSent int            `json:"total_emails_sent"`
	Opened          int            `json:"opened"`
	Emails          EmailsTracking `json:"emails"`
}

// Summarize builds the HR summary for an application.
func (a *Application) Summarize() EmailTrackingSummary {
	s := EmailTrackingSummary{
		ApplicationID:   a.ID,
		TotalEmailsSent: a.TotalEmailsSent,
		Emails:          EmailsTracking{},
	}
	for k, rec := range a.EmailsTracking {
		s.Emails[k] = rec
		if rec.Opened {
			s.Opened++
		}
	}
	return s
}
