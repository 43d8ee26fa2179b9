package auth

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultPhoneRegion = "US"

var ErrInvalidPhone = errors.New("phone must be a valid phone number")

// NormalizePhone parses a phone number, defaulting to the US region, and
// returns it in E.164 form. An empty input is returned unchanged.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.ContainsAny(raw, "@") {
		return "", ErrInvalidPhone
	}

	num, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
