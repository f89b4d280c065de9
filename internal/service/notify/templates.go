package notify

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/osteele/liquid"
)

// Template names a workflow email.
type Template string

const (
	TemplateHire            Template = "hire"
	TemplateReject          Template = "reject"
	TemplatePaymentRequest  Template = "payment_request"
	TemplatePaymentReceived Template = "payment_received"
	TemplateHRPaymentNotice Template = "hr_payment_notice"
	TemplatePaymentVerified Template = "payment_verified"
	TemplatePaymentRejected Template = "payment_rejected"
	TemplateWelcome         Template = "welcome"
)

type templateSource struct {
	subject string
	html    string
	text    string
}

var builtinTemplates = map[Template]templateSource{
	TemplateHire: {
		subject: `Congratulations {{ candidate_name }}! Your offer for {{ job_title }}`,
		html: `<p>Dear {{ candidate_name | escape }},</p>
<p>We are delighted to offer you the position of <strong>{{ job_title | escape }}</strong> in {{ department | escape }}.</p>
<p>Please confirm that you accept the offer by following this link:</p>
<p><a href="{{ confirmation_url }}">Confirm my offer</a></p>
<p>If the button does not work, copy this address into your browser: {{ confirmation_url }}</p>`,
		text: "Dear {{ candidate_name }},\n\nWe are delighted to offer you the position of {{ job_title }}.\nConfirm the offer here: {{ confirmation_url }}\n",
	},
	TemplateReject: {
		subject: `Your application for {{ job_title }}`,
		html: `<p>Dear {{ candidate_name | escape }},</p>
<p>Thank you for your interest in the {{ job_title | escape }} role. After careful review we have decided not to move forward with your application.</p>
{% if comment != "" %}<p>{{ comment | escape }}</p>{% endif %}
<p>We wish you every success.</p>`,
		text: "Dear {{ candidate_name }},\n\nThank you for applying for {{ job_title }}. We have decided not to move forward with your application.\n",
	},
	TemplatePaymentRequest: {
		subject: `Next step: onboarding payment for {{ job_title }}`,
		html: `<p>Dear {{ candidate_name | escape }},</p>
<p>Thank you for confirming your offer. To complete onboarding please pay {{ amount | currency: currency }}.</p>
<p><a href="{{ payment_url }}">View payment details</a></p>
<p>{{ instructions | escape }}</p>`,
		text: "Dear {{ candidate_name }},\n\nPlease pay {{ amount | currency: currency }} to complete onboarding: {{ payment_url }}\n",
	},
	TemplatePaymentReceived: {
		subject: `We received your payment details`,
		html: `<p>Dear {{ candidate_name | escape }},</p>
<p>We received your payment with transaction id <strong>{{ transaction_id | escape }}</strong>. Our HR team will verify it shortly.</p>`,
		text: "Dear {{ candidate_name }},\n\nWe received your payment (transaction {{ transaction_id }}). HR will verify it shortly.\n",
	},
	TemplateHRPaymentNotice: {
		subject: `Payment submitted: {{ candidate_name }} ({{ job_title }})`,
		html: `<p>{{ candidate_name | escape }} submitted a payment for application {{ application_id }}.</p>
<ul>
<li>Transaction: {{ transaction_id | escape }}</li>
<li>Method: {{ method | escape }}</li>
<li>Amount due: {{ amount | currency: currency }}</li>
</ul>
<p>Please verify the payment in the HR console.</p>`,
		text: "{{ candidate_name }} submitted payment {{ transaction_id }} ({{ method }}) for application {{ application_id }}.\n",
	},
	TemplatePaymentVerified: {
		subject: `Your payment has been verified`,
		html: `<p>Dear {{ candidate_name | escape }},</p>
<p>Your payment (transaction {{ transaction_id | escape }}) has been verified. Your employee account will be created shortly.</p>`,
		text: "Dear {{ candidate_name }},\n\nYour payment {{ transaction_id }} has been verified.\n",
	},
	TemplatePaymentRejected: {
		subject: `There is a problem with your payment`,
		html: `<p>Dear {{ candidate_name | escape }},</p>
<p>We could not verify your payment (transaction {{ transaction_id | escape }}).</p>
{% if note != "" %}<p>Reason: {{ note | escape }}</p>{% endif %}
<p>Please contact HR for assistance.</p>`,
		text: "Dear {{ candidate_name }},\n\nWe could not verify payment {{ transaction_id }}. {{ note }}\n",
	},
	TemplateWelcome: {
		subject: `Welcome aboard, {{ candidate_name }}!`,
		html: `<p>Dear {{ candidate_name | escape }},</p>
<p>Your employee account is ready.</p>
<ul>
<li>Employee code: {{ employee_code }}</li>
<li>Username: {{ username }}</li>
<li>Temporary password: {{ temp_password | escape }}</li>
<li>Joining date: {{ joining_date }}</li>
</ul>
<p>Please sign in at <a href="{{ login_url }}">{{ login_url }}</a> and change your password.</p>`,
		text: "Dear {{ candidate_name }},\n\nEmployee code: {{ employee_code }}\nUsername: {{ username }}\nTemporary password: {{ temp_password }}\nSign in at {{ login_url }}\n",
	},
}

// Rendered is the output of a template render.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer renders workflow templates with the Liquid engine. Parsed
// templates are cached per template part.
type Renderer struct {
	engine  *liquid.Engine
	sources map[Template]templateSource
	cache   sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a renderer loaded with the built-in templates.
func NewRenderer() *Renderer {
	r := &Renderer{
		engine:  liquid.NewEngine(),
		sources: builtinTemplates,
	}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// {{ amount | currency: "USD" }}
	r.engine.RegisterFilter("currency", func(value interface{}, code string) string {
		var f float64
		switch v := value.(type) {
		case float64:
			f = v
		case float32:
			f = float64(v)
		case int:
			f = float64(v)
		case int64:
			f = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return v
			}
			f = parsed
		default:
			return fmt.Sprintf("%v", value)
		}
		if code == "" {
			code = "USD"
		}
		return fmt.Sprintf("%s %.2f", code, f)
	})
}

// Render renders the subject, HTML and text parts of a template.
func (r *Renderer) Render(name Template, data map[string]any) (*Rendered, error) {
	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", name)
	}
	subject, err := r.renderPart(string(name)+".subject", src.subject, data)
	if err != nil {
		return nil, err
	}
	html, err := r.renderPart(string(name)+".html", src.html, data)
	if err != nil {
		return nil, err
	}
	text, err := r.renderPart(string(name)+".text", src.text, data)
	if err != nil {
		return nil, err
	}
	return &Rendered{Subject: subject, HTML: html, Text: text}, nil
}

func (r *Renderer) renderPart(key, source string, data map[string]any) (string, error) {
	var tpl *liquid.Template
	if cached, ok := r.cache.Load(key); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := r.engine.ParseString(source)
		if err != nil {
			return "", fmt.Errorf("parse template %s: %w", key, err)
		}
		r.cache.Store(key, parsed)
		tpl = parsed
	}
	out, err := tpl.RenderString(data)
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", key, err)
	}
	return out, nil
}
