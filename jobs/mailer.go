package jobs

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/time/rate"
)

// Message is a rendered plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	RatePerSecond float64
}

// SMTPMailer sends messages through an SMTP relay, throttled by a token
// bucket shared by all worker goroutines.
type SMTPMailer struct {
	addr    string
	auth    smtp.Auth
	from    string
	limiter *rate.Limiter
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &SMTPMailer{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:    auth,
		from:    cfg.From,
		limiter: rate.NewLimiter(limit, burst),
		send:    smtp.SendMail,
	}
}

// Send waits for a send slot and hands msg to the relay.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail throttle: %w", err)
	}
	if err := m.send(m.addr, m.auth, m.from, msg.To, m.encode(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) encode(msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", encodeHeader(msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return buf.Bytes()
}

// encodeHeader folds a header value onto one line and applies RFC 2047
// encoding when it holds non-ASCII text.
func encodeHeader(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	return mime.QEncoding.Encode("utf-8", v)
}

// mailData feeds the message templates.
type mailData struct {
	SiteName string
	Name     string
	URL      string
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

var mailTemplates = map[string]mailTemplate{
	TaskActivation: {
		subject: "Account activation on {{.SiteName}}",
		body: template.Must(template.New("activation").Parse(`Hello {{.Name}},

Please open the link below to activate your account on {{.SiteName}}:

{{.URL}}

Thanks for using our site!
`)),
	},
	TaskResetPassword: {
		subject: "Password reset on {{.SiteName}}",
		body: template.Must(template.New("reset").Parse(`Hello {{.Name}},

You're receiving this email because you requested a password reset for your account at {{.SiteName}}.
Please go to the following page and choose a new password:

{{.URL}}

If you did not request a reset you can ignore this message.
`)),
	},
	TaskResetPasswordConfirm: {
		subject: "{{.SiteName}} - Your password has been successfully reset!",
		body: template.Must(template.New("confirm").Parse(`Hello {{.Name}},

Your password has been changed.

Thanks for using our site!
`)),
	},
}

func renderMail(taskType string, data mailData, to []string) (Message, error) {
	tpl, ok := mailTemplates[taskType]
	if !ok {
		return Message{}, fmt.Errorf("jobs: no mail template for %q", taskType)
	}
	subject, err := template.New("subject").Parse(tpl.subject)
	if err != nil {
		return Message{}, err
	}
	var s, b bytes.Buffer
	if err := subject.Execute(&s, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := tpl.body.Execute(&b, data); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}
	return Message{To: to, Subject: s.String(), Body: b.String()}, nil
}
