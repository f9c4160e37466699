package credential

import (
	"net/mail"
	"strings"
)

const maxEmailLength = 254

// NormalizeEmail lowercases and trims an email-like identifier. Every storage
// boundary uses this form so lookups and uniqueness checks agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email (after normalization) is a bare address of
// the form local@domain.tld.
func ValidEmail(email string) bool {
	email = NormalizeEmail(email)
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	if strings.Count(email, "@") != 1 {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}

	at := strings.IndexByte(email, '@')
	local, domain := email[:at], email[at+1:]
	if local == "" || domain == "" {
		return false
	}
	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return !strings.Contains(domain, "..")
}
