package domain

import (
	"testing"
	"time"
)

func TestEmailsTrackingRecord(t *testing.T) {
	ledger := EmailsTracking{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	total := 0

	total += ledger.Record(EmailHireReject, "hire", now)
	total += ledger.Record(EmailPaymentRequest, "payment_request", now)
	if total != 2 || ledger.SentCount() != 2 {
		t.Fatalf("total = %d, sent = %d; want 2, 2", total, ledger.SentCount())
	}

	// A resend of the same kind bumps attempts but not the total.
	total += ledger.Record(EmailHireReject, "hire", now.Add(time.Hour))
	if total != ledger.SentCount() {
		t.Fatalf("total %d drifted from sent flags %d", total, ledger.SentCount())
	}
	rec := ledger[EmailHireReject]
	if rec.Attempts != 2 || !rec.SentDate.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected record after resend: %+v", rec)
	}
}

func TestEmailsTrackingMarkOpened(t *testing.T) {
	ledger := EmailsTracking{}
	now := time.Now().UTC()

	if ledger.MarkOpened(EmailWelcome, now) {
		t.Fatal("unsent email must not be marked opened")
	}
	ledger.Record(EmailWelcome, "welcome", now)
	if !ledger.MarkOpened(EmailWelcome, now) {
		t.Fatal("expected first open to be recorded")
	}
	if ledger.MarkOpened(EmailWelcome, now.Add(time.Minute)) {
		t.Fatal("second open must be ignored")
	}
	if !ledger[EmailWelcome].OpenedDate.Equal(now) {
		t.Fatal("opened date must keep the first open")
	}
}

func TestSummarize(t *testing.T) {
	now := time.Now().UTC()
	app := &Application{ID: "app-1", EmailsTracking: EmailsTracking{}}
	app.TotalEmailsSent += app.EmailsTracking.Record(EmailHireReject, "hire", now)
	app.EmailsTracking.MarkOpened(EmailHireReject, now)

	s := app.Summarize()
	if s.TotalEmailsSent != 1 || s.Opened != 1 || len(s.Emails) != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
