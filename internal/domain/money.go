package domain

import (
	"strconv"
	"strings"
)

// Money is a monetary amount as the backend serialises it. Decimal columns
// arrive as quoted strings ("150.00") while computed aggregates arrive as
// bare numbers; both decode to the same value. Marshalling always emits a
// bare number.
type Money float64

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(m), 'f', -1, 64)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*m = Money(f)
	return nil
}
