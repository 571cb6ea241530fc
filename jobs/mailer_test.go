package jobs

import (
	"context"
	"errors"
	"mime"
	"net/smtp"
	"strings"
	"testing"
)

func TestSMTPMailerEncodesMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 2525, From: "crm@example.com", RatePerSecond: 10})
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := m.Send(context.Background(), Message{To: []string{"a@x.io", "b@x.io"}, Subject: "Hi", Body: "line one\nline two"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "mail.local:2525" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if len(gotTo) != 2 {
		t.Fatalf("expected 2 recipients, got %v", gotTo)
	}
	for _, want := range []string{"From: crm@example.com\r\n", "To: a@x.io, b@x.io\r\n", "Subject: Hi\r\n", "line one\r\nline two"} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSMTPMailerEncodesNonASCIISubject(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 25, From: "crm@example.com"})
	var gotMsg string
	m.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}

	err := m.Send(context.Background(), Message{To: []string{"a@x.io"}, Subject: "Réinitialisation sur Café CRM\r\nBcc: x@evil.io", Body: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	header, _, _ := strings.Cut(gotMsg, "\r\n\r\n")
	var subject string
	for _, line := range strings.Split(header, "\r\n") {
		if v, ok := strings.CutPrefix(line, "Subject: "); ok {
			subject = v
		}
		if strings.HasPrefix(line, "Bcc:") {
			t.Fatalf("subject leaked a header line: %q", line)
		}
	}
	if !strings.HasPrefix(subject, "=?utf-8?q?") {
		t.Fatalf("expected RFC 2047 subject, got %q", subject)
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject)
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if decoded != "Réinitialisation sur Café CRM Bcc: x@evil.io" {
		t.Fatalf("unexpected decoded subject %q", decoded)
	}
}

func TestSMTPMailerWrapsTransportErrors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 25})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("421 service not available")
	}
	if err := m.Send(context.Background(), Message{To: []string{"a@x.io"}}); err == nil || !strings.Contains(err.Error(), "smtp send") {
		t.Fatalf("expected wrapped smtp error, got %v", err)
	}
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 25, RatePerSecond: 0.001})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return nil }
	ctx := context.Background()
	if err := m.Send(ctx, Message{To: []string{"a@x.io"}}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.Send(cancelled, Message{To: []string{"a@x.io"}}); err == nil {
		t.Fatalf("expected throttle error on cancelled context")
	}
}

func TestRenderMailUnknownType(t *testing.T) {
	if _, err := renderMail("mail:unknown", mailData{}, nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}
