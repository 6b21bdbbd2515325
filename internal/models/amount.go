package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidAmount indicates a money string that is not a plain non-negative decimal
// with at most two fraction digits
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a SAR value in halalas (1/100 SAR).
// It is formatted as "450.00" everywhere: gateway fields, JSON and NUMERIC columns.
type Amount int64

// NewAmount builds an amount from whole riyals and halalas
func NewAmount(riyals, halalas int64) Amount {
	return Amount(riyals*100 + halalas)
}

// ParseAmount parses "450", "450.5" or "450.00". Thousand separators, signs,
// exponents and more than two fraction digits are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || !isDigits(whole) || (hasDot && (frac == "" || !isDigits(frac))) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q has more than two decimal places", ErrInvalidAmount, s)
	}

	riyals, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || riyals > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}

	var halalas int64
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		halalas, _ = strconv.ParseInt(frac, 10, 64)
	}

	return NewAmount(riyals, halalas), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String formats with exactly two decimals and no grouping
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Mul multiplies by a unit count, e.g. price per adult times adults
func (a Amount) Mul(n int) Amount {
	return a * Amount(n)
}

// Value implements driver.Valuer. NUMERIC accepts the decimal string as is.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns
func (a *Amount) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = 0
		return nil
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	case int64:
		*a = Amount(v * 100)
		return nil
	case float64:
		*a = Amount(math.Round(v * 100))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", value)
	}
}

func (a *Amount) scanString(s string) error {
	// NUMERIC(18,2) always renders two decimals but tolerate trailing zeros beyond that
	if whole, frac, ok := strings.Cut(s, "."); ok && len(frac) > 2 {
		frac = strings.TrimRight(frac, "0")
		s = whole
		if frac != "" {
			s += "." + frac
		}
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON renders the amount as a JSON number with two decimals
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
