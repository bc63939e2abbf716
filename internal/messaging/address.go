// Package messaging is the WhatsApp transport over Twilio: outbound sends,
// TwiML replies, webhook signature checks and text report formatting.
package messaging

import (
	"errors"
	"strings"
)

// AddressPrefix marks a Twilio WhatsApp address.
const AddressPrefix = "whatsapp:"

// ErrInvalidAddress is returned for an address without digits.
var ErrInvalidAddress = errors.New("invalid whatsapp address")

// NormalizeAddress returns addr as "whatsapp:+<digits>". Spaces, dashes,
// dots and parentheses are dropped; an existing prefix or plus sign is
// accepted.
func NormalizeAddress(addr string) (string, error) {
	s := strings.TrimSpace(addr)
	if len(s) >= len(AddressPrefix) && strings.EqualFold(s[:len(AddressPrefix)], AddressPrefix) {
		s = s[len(AddressPrefix):]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", ErrInvalidAddress
		}
	}
	if b.Len() == 0 {
		return "", ErrInvalidAddress
	}
	return AddressPrefix + "+" + b.String(), nil
}

// DisplayNumber strips the transport prefix from addr.
func DisplayNumber(addr string) string {
	return strings.TrimPrefix(strings.TrimSpace(addr), AddressPrefix)
}
