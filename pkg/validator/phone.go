package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates the number has the wrong number of digits
	ErrInvalidLength = errors.New("phone number must be 05XXXXXXXX or an international number with 8 to 15 digits")

	// ErrInvalidPrefix indicates a Saudi number that is not a mobile number
	ErrInvalidPrefix = errors.New("Saudi mobile numbers must start with 050, 053, 054, 055, 056, 057, 058 or 059")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")
)

// validPrefixes contains the Saudi mobile operator prefixes
var validPrefixes = []string{
	"050", // STC
	"053", // STC
	"055", // STC
	"054", // Mobily
	"056", // Mobily
	"058", // Zain
	"059", // Zain
	"057", // Virgin / Lebara
}

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator handles phone number validation
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate accepts Saudi mobiles as 0501234567, 966501234567, +966 50 123 4567
// or 00966501234567 and returns them as 0501234567. Other international numbers
// written with + or 00 are returned as +<digits>.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	international := strings.HasPrefix(strings.TrimSpace(phone), "+")
	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if strings.HasPrefix(sanitized, "00") {
		international = true
		sanitized = sanitized[2:]
	}

	switch {
	case strings.HasPrefix(sanitized, "9665") && len(sanitized) == 12:
		sanitized = "0" + sanitized[3:]
	case strings.HasPrefix(sanitized, "5") && len(sanitized) == 9 && !international:
		sanitized = "0" + sanitized
	case international && !strings.HasPrefix(sanitized, "966"):
		if len(sanitized) < 8 || len(sanitized) > 15 {
			return "", ErrInvalidLength
		}
		return "+" + sanitized, nil
	}

	if len(sanitized) != 10 {
		return "", ErrInvalidLength
	}

	if !v.IsValidPrefix(sanitized) {
		return "", ErrInvalidPrefix
	}

	return sanitized, nil
}

// Sanitize removes spaces and common separators
func (v *PhoneValidator) Sanitize(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")
	return replacer.Replace(strings.TrimSpace(phone))
}

// IsValidPrefix checks if phone number has a valid Saudi mobile prefix
func (v *PhoneValidator) IsValidPrefix(phone string) bool {
	if len(phone) < 3 {
		return false
	}

	prefix := phone[:3]
	for _, validPrefix := range validPrefixes {
		if prefix == validPrefix {
			return true
		}
	}

	return false
}

// Format formats a Saudi mobile as 05X XXX XXXX. International numbers are returned as validated.
func (v *PhoneValidator) Format(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(sanitized, "+") {
		return sanitized, nil
	}

	return fmt.Sprintf("%s %s %s",
		sanitized[0:3],
		sanitized[3:6],
		sanitized[6:10],
	), nil
}

// GetOperator returns the mobile operator name based on prefix
func (v *PhoneValidator) GetOperator(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(sanitized, "+") {
		return "", ErrInvalidPrefix
	}

	switch sanitized[:3] {
	case "050", "053", "055":
		return "STC", nil
	case "054", "056":
		return "Mobily", nil
	case "058", "059":
		return "Zain", nil
	case "057":
		return "MVNO", nil
	default:
		return "", ErrInvalidPrefix
	}
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
