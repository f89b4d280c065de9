package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/pkg/logger"
)

// Email is a workflow notification request.
type Email struct {
	To            string
	Template      Template
	Data          map[string]any
	ApplicationID string
	Kind          domain.EmailKind
}

// Message is a rendered email ready for a Sender.
type Message struct {
	To        string
	FromName  string
	FromEmail string
	ReplyTo   string
	Subject   string
	HTML      string
	Text      string
	Tags      map[string]string
}

// SendResult reports a delivery attempt.
type SendResult struct {
	Success   bool
	MessageID string
	Error     error
	Provider  string
	SentAt    time.Time
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}

// PixelFunc returns the open-tracking pixel URL for an application's email
// kind, or "" to send without a pixel.
type PixelFunc func(applicationID string, kind domain.EmailKind) string

// From is the sender identity used for every workflow email.
type From struct {
	Name    string
	Email   string
	ReplyTo string
}

// ErrNotDelivered is returned when the provider accepted the call but
// reported a failed delivery.
var ErrNotDelivered = errors.New("email not delivered")

// Mailer renders and dispatches workflow emails.
type Mailer struct {
	renderer *Renderer
	sender   Sender
	from     From
	pixel    PixelFunc
	log      *logger.Logger
}

// NewMailer creates a mailer. pixel may be nil.
func NewMailer(renderer *Renderer, sender Sender, from From, pixel PixelFunc) *Mailer {
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Mailer{
		renderer: renderer,
		sender:   sender,
		from:     from,
		pixel:    pixel,
		log:      logger.Default().With("component", "mailer"),
	}
}

// Send renders e and hands it to the sender. A nil error means the provider
// confirmed the dispatch.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if strings.TrimSpace(e.To) == "" {
		return fmt.Errorf("send %s: empty recipient", e.Template)
	}
	rendered, err := m.renderer.Render(e.Template, e.Data)
	if err != nil {
		return err
	}

	html := rendered.HTML
	if m.pixel != nil && e.ApplicationID != "" && e.Kind != "" {
		if url := m.pixel(e.ApplicationID, e.Kind); url != "" {
			html += fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none">`, url)
		}
	}

	msg := &Message{
		To:        e.To,
		FromName:  m.from.Name,
		FromEmail: m.from.Email,
		ReplyTo:   m.from.ReplyTo,
		Subject:   rendered.Subject,
		HTML:      html,
		Text:      rendered.Text,
		Tags: map[string]string{
			"template":       string(e.Template),
			"application_id": e.ApplicationID,
		},
	}

	res, err := m.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send %s: %w", e.Template, err)
	}
	if res == nil || !res.Success {
		if res != nil && res.Error != nil {
			return fmt.Errorf("send %s: %w: %v", e.Template, ErrNotDelivered, res.Error)
		}
		return fmt.Errorf("send %s: %w", e.Template, ErrNotDelivered)
	}
	m.log.Info("email dispatched", "template", e.Template, "application_id", e.ApplicationID,
		"to_email", e.To, "message_id", res.MessageID)
	return nil
}
