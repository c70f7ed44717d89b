package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Price is a decimal amount in major currency units. The catalog API sends
// it either as a JSON number or as a decimal string ("1299.00"), depending on
// the serializer behind the endpoint.
type Price float64

// UnmarshalJSON accepts numbers, numeric strings and null.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParsePrice(s)
		if err != nil {
			return err
		}
		*p = Price(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = Price(f)
	return nil
}

// ParsePrice converts a decimal string to a float rounded to cents.
// Examples: "99.00" → 99, "1,234.5" → 1234.5, "" → 0
func ParsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", s, err)
	}
	return RoundCents(f), nil
}

// RoundCents rounds to two decimal places.
func RoundCents(f float64) float64 {
	return math.Round(f*100) / 100
}
