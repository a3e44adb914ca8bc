package auth

import (
	"errors"
	"strings"

	"github.com/faith-connect/faith_connect/internal/apiclient"
)

// ErrInvalidPhone is returned by NormalizePhone for input without digits or
// with characters other than digits and separators.
var ErrInvalidPhone = errors.New("invalid phone number")

// Ticket is the pending verification between the login/signup step and the
// OTP step. It is held in memory only.
type Ticket struct {
	Identifier string
	Method     apiclient.Method
}

// NormalizePhone converts a locally typed phone number into +<country><number>
// form: separators are dropped, a leading trunk 0 is replaced by the country
// code, and a number already carrying the country code gains a "+".
func NormalizePhone(raw, countryCode string) (string, error) {
	countryCode = strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	raw = strings.TrimSpace(raw)

	international := strings.HasPrefix(raw, "+")
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		case r == '+' && i == 0:
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrInvalidPhone
	}

	switch {
	case international:
		return "+" + digits, nil
	case strings.HasPrefix(digits, "00"):
		return "+" + digits[2:], nil
	case strings.HasPrefix(digits, "0"):
		return "+" + countryCode + digits[1:], nil
	case countryCode != "" && strings.HasPrefix(digits, countryCode):
		return "+" + digits, nil
	default:
		return "+" + countryCode + digits, nil
	}
}
