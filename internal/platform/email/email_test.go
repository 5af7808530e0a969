package email

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"hrmportal/internal/platform/config"
)

func TestNewDisabledIsNoop(t *testing.T) {
	m := New(config.Defaults())
	if err := m.Send(context.Background(), "a@b.c", "d@e.f", "s", "b"); err != nil {
		t.Fatalf("noop mailer returned %v", err)
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(buildMessage("from@x", "to@y", "Hi", "body"))
	for _, want := range []string{"From: from@x\r\n", "To: to@y\r\n", "Subject: Hi\r\n", "\r\n\r\nbody"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %q", want, msg)
		}
	}
}

func TestCodeSenderWritesToOutbox(t *testing.T) {
	outbox := &Outbox{}
	sender := CodeSender{Mailer: outbox, From: "no-reply@example.com"}
	if err := sender.SendVerificationCode(context.Background(), "Ana@Example.com", "482913", 15*time.Minute); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg, ok := outbox.Last("ana@example.com")
	if !ok {
		t.Fatal("expected message in outbox")
	}
	if !strings.Contains(msg.Body, "482913") || !strings.Contains(msg.Body, "15 minutes") {
		t.Fatalf("unexpected body %q", msg.Body)
	}
	if _, ok := outbox.Last("other@example.com"); ok {
		t.Fatal("unexpected message for other address")
	}
}

func TestLogMailerWritesBody(t *testing.T) {
	var buf bytes.Buffer
	m := LogMailer{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	if err := m.Send(context.Background(), "a@b.c", "d@e.f", "Code", "Your code is 123456"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(buf.String(), "123456") {
		t.Fatalf("code missing from log: %s", buf.String())
	}
}
