package smtp

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestMessageHeaders(t *testing.T) {
	m := New("smtp.example.com", 587, "user", "pass", "noreply@example.com")
	msg := m.Message("b@acme.com", "Invitation to join our app", `<a href="x">Sign Up</a>`)

	if got := msg.GetHeader("From"); len(got) != 1 || got[0] != "noreply@example.com" {
		t.Errorf("From = %v", got)
	}
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "b@acme.com" {
		t.Errorf("To = %v", got)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !strings.Contains(buf.String(), "text/html") {
		t.Error("expected an HTML body part")
	}
}

func TestSendHonoursCancelledContext(t *testing.T) {
	m := New("127.0.0.1", 1, "", "", "noreply@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, "b@acme.com", "s", "b"); err != context.Canceled {
		t.Errorf("Send = %v, want context.Canceled", err)
	}
}
