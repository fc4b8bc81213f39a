package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric is a database NUMERIC column read as a float64.
//
// Backends disagree on the wire shape: the REST API emits a JSON number,
// lib/pq hands back the decimal text, and sqlite returns REAL. Numeric
// accepts a JSON number or a quoted decimal string and always marshals as a
// number. Precision beyond float64 is lost.
type Numeric float64

// Float returns the value as a float64.
func (n Numeric) Float() float64 {
	return float64(n)
}

// MarshalJSON implements json.Marshaler.
func (n Numeric) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(n))
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*n = 0
			return nil
		}
		v, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*n = Numeric(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Numeric(v)
	return nil
}

// ParseAmount parses a decimal string into a float64.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, the way
// amounts are typed into forms. Infinite and NaN values are rejected.
//
//	ParseAmount("5000")    -> 5000, nil
//	ParseAmount("12,50")   -> 12.5, nil
//	ParseAmount("abc")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParsePositiveAmount is ParseAmount restricted to values greater than zero.
func ParsePositiveAmount(s string) (float64, error) {
	v, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatAmount renders an amount without trailing zeros ("5000", "12.5").
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
