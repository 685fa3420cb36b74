package invite

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent map[string]string
	fail map[string]bool
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("smtp: mailbox unavailable")
	}
	if subject != Subject {
		return errors.New("unexpected subject " + subject)
	}
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[to] = body
	return nil
}

type countingObserver struct {
	mu       sync.Mutex
	ok, fail int
}

func (o *countingObserver) ObserveInvite(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.ok++
	} else {
		o.fail++
	}
}

func TestSignupLink(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://app.example.com/signup", "https://app.example.com/signup?inviteToken=tok"},
		{"https://app.example.com/signup?ref=mail", "https://app.example.com/signup?inviteToken=tok&ref=mail"},
	}
	for _, tt := range tests {
		got, err := SignupLink(tt.link, "tok")
		if err != nil {
			t.Fatalf("SignupLink(%q): %v", tt.link, err)
		}
		if got != tt.want {
			t.Errorf("SignupLink(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}

func TestSendEmbedsToken(t *testing.T) {
	m := &fakeMailer{}
	obs := &countingObserver{}
	s := NewService(m, obs)
	s.newToken = func() string { return "fixed-token" }

	res := s.Send(context.Background(), "b@acme.com", "https://app.example.com/signup")
	if !res.Success || res.Address != "b@acme.com" {
		t.Fatalf("Send = %+v", res)
	}
	body := m.sent["b@acme.com"]
	if !strings.Contains(body, `href="https://app.example.com/signup?inviteToken=fixed-token"`) {
		t.Errorf("body missing signup link: %s", body)
	}
	if !strings.Contains(body, "Sign Up") {
		t.Errorf("body missing anchor text: %s", body)
	}
	if obs.ok != 1 {
		t.Errorf("observer ok = %d", obs.ok)
	}
}

func TestSendReportsTransportFailure(t *testing.T) {
	m := &fakeMailer{fail: map[string]bool{"x@acme.com": true}}
	obs := &countingObserver{}
	s := NewService(m, obs)

	res := s.Send(context.Background(), "x@acme.com", "https://app.example.com")
	if res.Success {
		t.Fatal("expected failure")
	}
	if obs.fail != 1 {
		t.Errorf("observer fail = %d", obs.fail)
	}
}

func TestSendBulk(t *testing.T) {
	m := &fakeMailer{}
	s := NewService(m, nil)
	emails := []string{"a@acme.com", "b@acme.com", "c@acme.com"}

	if err := s.SendBulk(context.Background(), emails, "https://app.example.com"); err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if len(m.sent) != 3 {
		t.Errorf("sent %d, want 3", len(m.sent))
	}

	m.fail = map[string]bool{"b@acme.com": true}
	err := s.SendBulk(context.Background(), emails, "https://app.example.com")
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("SendBulk error = %v, want ErrSendFailed", err)
	}
}
