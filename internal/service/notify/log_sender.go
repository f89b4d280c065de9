package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/onboarding/internal/pkg/logger"
)

// LogSender logs messages instead of sending them. It keeps the last
// messages in memory for local development and tests.
type LogSender struct {
	mu   sync.Mutex
	sent []Message
	max  int
}

// NewLogSender creates a sender that retains up to max messages.
func NewLogSender(max int) *LogSender {
	if max <= 0 {
		max = 100
	}
	return &LogSender{max: max}
}

// Send logs msg and reports success.
func (s *LogSender) Send(_ context.Context, msg *Message) (*SendResult, error) {
	id := uuid.New().String()
	logger.Info("email (log sender)", "to_email", msg.To, "subject", msg.Subject, "message_id", id)

	s.mu.Lock()
	s.sent = append(s.sent, *msg)
	if len(s.sent) > s.max {
		s.sent = s.sent[len(s.sent)-s.max:]
	}
	s.mu.Unlock()

	return &SendResult{Success: true, MessageID: id, Provider: "log", SentAt: time.Now()}, nil
}

// Sent returns a copy of the retained messages.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
