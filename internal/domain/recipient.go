package domain

import (
	"fmt"
	"strings"
)

// RecipientStatus is the per-recipient delivery state.
type RecipientStatus string

const (
	RecipientPending    RecipientStatus = "PENDING"
	RecipientAttempting RecipientStatus = "ATTEMPTING"
	RecipientSent       RecipientStatus = "SENT"
	RecipientFailed     RecipientStatus = "FAILED"
)

func (s RecipientStatus) String() string { return string(s) }

func (s RecipientStatus) IsTerminal() bool {
	return s == RecipientSent || s == RecipientFailed
}

// Recipient is one target contact plus its personalized message.
type Recipient struct {
	Row     int
	Contact string
	Message string
}

func NewRecipient(row int, rawContact string, message string) Recipient {
	return Recipient{
		Row:     row,
		Contact: NormalizeContact(rawContact),
		Message: message,
	}
}

func (r Recipient) Validate() error {
	if r.Contact == "" {
		return fmt.Errorf("%w: contact has no digits", ErrValidation)
	}
	return nil
}

// NormalizeContact keeps only the ASCII digits of a raw contact value.
//
// Spreadsheet numeric cells often come back in float form ("15551234567.0",
// "1.5551234567E+10"); those are rendered as integers first so the fractional
// zero or the exponent digits do not leak into the number.
func NormalizeContact(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if integer, ok := floatCellToInteger(value); ok {
		value = integer
	}

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func floatCellToInteger(value string) (string, bool) {
	lower := strings.ToLower(value)

	if mantissa, exp, found := strings.Cut(lower, "e+"); found {
		return expandExponent(mantissa, exp)
	}

	if whole, frac, found := strings.Cut(value, "."); found && whole != "" && strings.Trim(frac, "0") == "" {
		if isDigits(whole) {
			return whole, true
		}
	}

	return "", false
}

func expandExponent(mantissa string, exp string) (string, bool) {
	if !isDigits(exp) || len(exp) > 2 {
		return "", false
	}
	whole, frac, _ := strings.Cut(mantissa, ".")
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return "", false
	}

	shift := 0
	for _, r := range exp {
		shift = shift*10 + int(r-'0')
	}
	if len(frac) > shift {
		return "", false
	}

	return whole + frac + strings.Repeat("0", shift-len(frac)), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
