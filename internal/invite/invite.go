// Package invite sends invitation emails carrying a one-time signup token.
package invite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrSendFailed reports that an invitation could not be delivered.
var ErrSendFailed = errors.New("failed to send invitation")

const Subject = "Invitation to join our app"

var bodyTemplate = template.Must(template.New("invite").Parse(
	`<p>You have been invited to join our app.</p>
<p><a href="{{.Link}}">Sign Up</a></p>
`))

// Mailer delivers one HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Observer is notified of every send attempt.
type Observer interface {
	ObserveInvite(ok bool)
}

type Result struct {
	Success bool   `json:"success"`
	Address string `json:"address"`
}

type Service struct {
	mailer   Mailer
	observer Observer
	newToken func() string

	// Concurrency bounds SendBulk fan-out.
	Concurrency int
}

// NewService returns a Service sending through mailer. observer may be nil.
func NewService(mailer Mailer, observer Observer) *Service {
	return &Service{
		mailer:      mailer,
		observer:    observer,
		newToken:    func() string { return uuid.NewString() },
		Concurrency: 8,
	}
}

// SignupLink appends the inviteToken query parameter to link.
func SignupLink(link, token string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parsing invitation link: %w", err)
	}
	q := u.Query()
	q.Set("inviteToken", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Render builds the message body for link and token.
func Render(link, token string) (string, error) {
	signup, err := SignupLink(link, token)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, struct{ Link string }{signup}); err != nil {
		return "", fmt.Errorf("rendering invitation: %w", err)
	}
	return buf.String(), nil
}

// Send delivers one invitation. Failures are logged and reported in the
// result rather than returned.
func (s *Service) Send(ctx context.Context, email, invitationLink string) Result {
	res := Result{Address: email}
	body, err := Render(invitationLink, s.newToken())
	if err == nil {
		err = s.mailer.Send(ctx, email, Subject, body)
	}
	if err != nil {
		slog.Error("sending invitation", "to", email, "error", err)
	} else {
		res.Success = true
		slog.Info("invitation sent", "to", email)
	}
	if s.observer != nil {
		s.observer.ObserveInvite(res.Success)
	}
	return res
}

// SendBulk invites every address concurrently. Any failed address makes the
// whole call fail with ErrSendFailed.
func (s *Service) SendBulk(ctx context.Context, emails []string, invitationLink string) error {
	results := make([]Result, len(emails))
	g, gctx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, email := range emails {
		g.Go(func() error {
			results[i] = s.Send(gctx, email, invitationLink)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d invitations", ErrSendFailed, failed, len(emails))
	}
	return nil
}

// LogMailer logs messages instead of delivering them. It is used when no
// SMTP host is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	slog.Info("mail delivery disabled, logging invitation", "to", to, "subject", subject, "body", htmlBody)
	return nil
}
