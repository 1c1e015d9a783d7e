// Package address validates recipient and account addresses before any
// store call is made with them.
package address

import (
	"net/mail"
	"strings"
)

// Valid reports whether addr parses as a single RFC 5322 address with a
// non-empty domain after the last "@". Display-name forms such as
// "Name <user@example.com>" are accepted; the check applies to the
// address part.
func Valid(addr string) bool {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return false
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return false
	}
	at := strings.LastIndex(parsed.Address, "@")
	if at < 0 {
		return false
	}
	return parsed.Address[at+1:] != ""
}
