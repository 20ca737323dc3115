package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// ErrInvalidPhone is returned when a buyer phone cannot receive SMS.
var ErrInvalidPhone = errors.New("ledger: invalid phone number")

// NormalizePhone validates raw for region and returns it in E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhone)
	}
	p, err := libphonenumber.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPhone, raw)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}
