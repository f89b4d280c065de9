package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/onboarding/internal/domain"
)

func TestRendererHire(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render(TemplateHire, map[string]any{
		"candidate_name":   "Jane Roe",
		"job_title":        "Platform Engineer",
		"department":       "Engineering",
		"confirmation_url": "https://jobs.example.com/applications/a1/confirm-hiring/tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "Congratulations Jane Roe! Your offer for Platform Engineer", out.Subject)
	assert.Contains(t, out.HTML, `href="https://jobs.example.com/applications/a1/confirm-hiring/tok"`)
	assert.Contains(t, out.Text, "https://jobs.example.com/applications/a1/confirm-hiring/tok")

	// second render is served from the parse cache
	again, err := r.Render(TemplateHire, map[string]any{"candidate_name": "Sam", "job_title": "QA", "department": "Quality", "confirmation_url": "u"})
	require.NoError(t, err)
	assert.Equal(t, "Congratulations Sam! Your offer for QA", again.Subject)
}

func TestRendererCurrencyFilter(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render(TemplatePaymentRequest, map[string]any{
		"candidate_name": "Jane",
		"job_title":      "Analyst",
		"amount":         150.0,
		"currency":       "EUR",
		"payment_url":    "https://x/pay",
		"instructions":   "Bank transfer",
	})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "EUR 150.00")
	assert.Contains(t, out.Text, "EUR 150.00")
}

func TestRendererUnknownTemplate(t *testing.T) {
	_, err := NewRenderer().Render(Template("nope"), nil)
	assert.Error(t, err)
}

type fakeSender struct {
	msgs []*Message
	res  *SendResult
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg *Message) (*SendResult, error) {
	f.msgs = append(f.msgs, msg)
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &SendResult{Success: true, MessageID: "m-1"}, nil
}

func TestMailerAddsPixel(t *testing.T) {
	sender := &fakeSender{}
	m := NewMailer(nil, sender, From{Name: "HR", Email: "hr@example.com"}, func(appID string, kind domain.EmailKind) string {
		return "https://t.example.com/track/open/" + appID + "/" + string(kind)
	})

	data := map[string]any{
		"candidate_name": "Jane",
		"employee_code":  "EMP26IT001",
		"username":       "jane",
		"temp_password":  "s3cret-temp-pass",
		"joining_date":   "2026-11-02",
		"login_url":      "https://jobs.example.com/login",
	}
	err := m.Send(context.Background(), Email{
		To:            "jane@example.com",
		Template:      TemplateWelcome,
		Data:          data,
		ApplicationID: "a1",
		Kind:          domain.EmailWelcome,
	})
	require.NoError(t, err)
	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "hr@example.com", msg.FromEmail)
	assert.Contains(t, msg.HTML, "EMP26IT001")
	assert.Contains(t, msg.HTML, "https://t.example.com/track/open/a1/welcomeEmail")
	assert.Equal(t, "welcome", msg.Tags["template"])
}

func TestMailerReportsFailures(t *testing.T) {
	ctx := context.Background()
	e := Email{To: "jane@example.com", Template: TemplateReject, Data: map[string]any{"candidate_name": "Jane", "job_title": "QA", "comment": ""}}

	m := NewMailer(nil, &fakeSender{err: errors.New("boom")}, From{Email: "hr@example.com"}, nil)
	assert.Error(t, m.Send(ctx, e))

	m = NewMailer(nil, &fakeSender{res: &SendResult{Success: false, Error: errors.New("throttled")}}, From{Email: "hr@example.com"}, nil)
	err := m.Send(ctx, e)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotDelivered)

	e.To = " "
	assert.Error(t, m.Send(ctx, e))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESSenderBuildsInput(t *testing.T) {
	api := &fakeSES{}
	s := NewSESSenderWithClient(api, "onboarding")

	res, err := s.Send(context.Background(), &Message{
		To:        "jane@example.com",
		FromName:  "Acme HR",
		FromEmail: "hr@acme.test",
		ReplyTo:   "people@acme.test",
		Subject:   "Hello",
		HTML:      "<p>hi</p>",
		Text:      "hi",
		Tags:      map[string]string{"template": "hire", "application_id": "a1", "empty": ""},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ses-123", res.MessageID)

	in := api.input
	require.NotNil(t, in)
	assert.Equal(t, "Acme HR <hr@acme.test>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"jane@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, []string{"people@acme.test"}, in.ReplyToAddresses)
	assert.Equal(t, "onboarding", aws.ToString(in.ConfigurationSetName))
	assert.Equal(t, "hi", aws.ToString(in.Content.Simple.Body.Text.Data))
	require.Len(t, in.EmailTags, 2)
	assert.Equal(t, "application_id", aws.ToString(in.EmailTags[0].Name))
}

func TestSESSenderFailureIsUnsuccessfulResult(t *testing.T) {
	s := NewSESSenderWithClient(&fakeSES{err: errors.New("denied")}, "")
	res, err := s.Send(context.Background(), &Message{To: "a@b.co", FromEmail: "hr@acme.test"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Error(t, res.Error)
}
