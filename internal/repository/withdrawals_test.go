package repository

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAvailableFrom(t *testing.T) {
	tests := []struct {
		name     string
		pending  string
		reserved string
		want     string
	}{
		{name: "no reservations", pending: "150.00", reserved: "0", want: "150"},
		{name: "partial reservation", pending: "150.00", reserved: "40.50", want: "109.5"},
		{name: "fully reserved", pending: "100", reserved: "100", want: "0"},
		{name: "over-reserved clamps to zero", pending: "100", reserved: "130", want: "0"},
		{name: "empty balance", pending: "0", reserved: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := availableFrom(dec(tt.pending), dec(tt.reserved))
			if !got.Equal(dec(tt.want)) {
				t.Fatalf("availableFrom(%s, %s) = %s, want %s", tt.pending, tt.reserved, got, tt.want)
			}
		})
	}
}

func TestPickBonusesFIFO(t *testing.T) {
	pending := []bonusSlice{
		{ID: 1, Amount: dec("30")},
		{ID: 2, Amount: dec("40")},
		{ID: 3, Amount: dec("50")},
	}

	tests := []struct {
		name         string
		pending      []bonusSlice
		target       string
		wantConsumed []int64
		wantOK       bool
	}{
		{name: "covers with two oldest", pending: pending, target: "60", wantConsumed: []int64{1, 2}, wantOK: true},
		{name: "exact single bonus", pending: pending, target: "30", wantConsumed: []int64{1}, wantOK: true},
		{name: "needs all three", pending: pending, target: "120", wantConsumed: []int64{1, 2, 3}, wantOK: true},
		{name: "insufficient", pending: pending, target: "120.02", wantConsumed: nil, wantOK: false},
		{name: "one-cent remainder forgiven", pending: pending, target: "120.01", wantConsumed: []int64{1, 2, 3}, wantOK: true},
		{name: "one cent short of target forgiven", pending: []bonusSlice{{ID: 7, Amount: dec("59.99")}}, target: "60.00", wantConsumed: []int64{7}, wantOK: true},
		{name: "sub-cent remainder forgiven", pending: pending, target: "30.005", wantConsumed: []int64{1}, wantOK: true},
		{name: "no pending bonuses", pending: nil, target: "10", wantConsumed: nil, wantOK: false},
		{name: "zero target", pending: pending, target: "0", wantConsumed: nil, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumed, ok := pickBonusesFIFO(tt.pending, dec(tt.target))
			if ok != tt.wantOK {
				t.Fatalf("pickBonusesFIFO ok = %v, want %v", ok, tt.wantOK)
			}
			if len(consumed) != len(tt.wantConsumed) {
				t.Fatalf("consumed = %v, want %v", consumed, tt.wantConsumed)
			}
			for i := range consumed {
				if consumed[i] != tt.wantConsumed[i] {
					t.Fatalf("consumed = %v, want %v", consumed, tt.wantConsumed)
				}
			}
		})
	}
}
