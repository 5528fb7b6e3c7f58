package validation

import (
	"strings"
	"testing"
)

func TestNewTrackingToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewTrackingToken()
		if err != nil {
			t.Fatalf("NewTrackingToken() error = %v", err)
		}
		if len(token) != TokenLength {
			t.Fatalf("len(token) = %d, want %d", len(token), TokenLength)
		}
		if token != strings.ToUpper(token) {
			t.Fatalf("token %q is not uppercase", token)
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestNormalizeDocument(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     string
	}{
		{name: "cpf with punctuation", document: "123.456.789-09", want: "12345678909"},
		{name: "cnpj with punctuation", document: "12.345.678/0001-95", want: "12345678000195"},
		{name: "digits only", document: "12345678909", want: "12345678909"},
		{name: "letters stripped", document: "abc123", want: "123"},
		{name: "empty", document: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDocument(tt.document); got != tt.want {
				t.Errorf("NormalizeDocument(%q) = %q, want %q", tt.document, got, tt.want)
			}
		})
	}
}

func TestIsValidDocument(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     bool
	}{
		{name: "cpf", document: "123.456.789-09", want: true},
		{name: "cnpj", document: "12.345.678/0001-95", want: true},
		{name: "too short", document: "123456", want: false},
		{name: "too long", document: "123456789012345", want: false},
		{name: "empty", document: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidDocument(tt.document); got != tt.want {
				t.Errorf("IsValidDocument(%q) = %v, want %v", tt.document, got, tt.want)
			}
		})
	}
}
