package model

import (
	"encoding/json"
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"whole number", "99.00", 99, false},
		{"with cents", "123.45", 123.45, false},
		{"thousands separator", "1,234.50", 1234.5, false},
		{"empty string", "", 0, false},
		{"whitespace", "  42 ", 42, false},
		{"rounds to cents", "10.006", 10.01, false},
		{"invalid string", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrice(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPrice_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Price
		wantErr bool
	}{
		{"number", `{"price": 2499.5}`, 2499.5, false},
		{"string", `{"price": "2499.50"}`, 2499.5, false},
		{"null", `{"price": null}`, 0, false},
		{"missing", `{}`, 0, false},
		{"garbage string", `{"price": "n/a"}`, 0, true},
		{"bool", `{"price": true}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				Price Price `json:"price"`
			}
			err := json.Unmarshal([]byte(tt.input), &v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && v.Price != tt.want {
				t.Errorf("Price = %v, want %v", v.Price, tt.want)
			}
		})
	}
}
