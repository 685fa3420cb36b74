package domain

import (
	"slices"
	"strings"

	"github.com/badoux/checkmail"
)

// NormalizeEmail trims and lower-cases email and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", Validationf("Email is required.")
	}
	if err := checkmail.ValidateFormat(e); err != nil {
		return "", Validationf("Invalid email address: %s", email)
	}
	return e, nil
}

// NormalizeEmails normalizes every address and drops repeats.
func NormalizeEmails(emails []string) ([]string, error) {
	out := make([]string, 0, len(emails))
	for _, raw := range emails {
		e, err := NormalizeEmail(raw)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// EmailDomain returns the lower-cased part after the last '@', or "".
func EmailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
