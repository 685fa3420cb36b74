// Package smtp delivers invitation mail through an SMTP relay.
package smtp

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(host string, port int, username, password, from string) *Mailer {
	return &Mailer{dialer: gomail.NewDialer(host, port, username, password), from: from}
}

// Message builds the MIME message for one recipient.
func (m *Mailer) Message(to, subject, htmlBody string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return msg
}

// Send dials the relay for each message; gomail has no context support, so
// ctx is only checked before dialing.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(m.Message(to, subject, htmlBody)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
