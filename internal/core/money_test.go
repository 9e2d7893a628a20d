package core

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"$4.20", 420, true},
		{".5", 50, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"0.004", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
		{"1.٣", 0, false},
		{"١٢", 0, false},
		{"５", 0, false},
		{"100000000000", MaxAmountCents, true},
		{"99999999999.995", MaxAmountCents, true},
		{"100000000000.01", 0, false},
		{"46116860184273879.04", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyFormatting(t *testing.T) {
	cases := []struct {
		m       Money
		decimal string
		display string
	}{
		{Money{Cents: 1234}, "12.34", "$12.34"},
		{Money{Cents: 5}, "0.05", "$0.05"},
		{Money{Cents: 0}, "0.00", "$0.00"},
		{Money{Cents: -150}, "-1.50", "-$1.50"},
	}
	for _, tc := range cases {
		if got := tc.m.Decimal(); got != tc.decimal {
			t.Errorf("Decimal(%d) = %q, want %q", tc.m.Cents, got, tc.decimal)
		}
		if got := tc.m.String(); got != tc.display {
			t.Errorf("String(%d) = %q, want %q", tc.m.Cents, got, tc.display)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 1999})
	if err != nil || string(b) != "19.99" {
		t.Fatalf("marshal: %s %v", b, err)
	}
	for in, want := range map[string]int64{
		"19.99":   1999,
		"12.5":    1250,
		"0.1":     10,
		`"7,25"`:  725,
		"1e2":     10000,
		"3.14159": 314,
	} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if m.Cents != want {
			t.Fatalf("unmarshal %s = %d, want %d", in, m.Cents, want)
		}
	}
	var m Money
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestMoneyJSONExactDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{`1234567890123456.79`, 123456789012345679},
		{`"1234567890123456.79"`, 123456789012345679},
		{`0.005`, 1},
		{`-0.005`, -1},
		{`2.675`, 268},
		{`1.5e-1`, 15},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if m.Cents != tc.want {
			t.Errorf("%s: got %d cents, want %d", tc.in, m.Cents, tc.want)
		}
		b, err := json.Marshal(m)
		if err != nil {
			t.Fatal(err)
		}
		var back Money
		if err := json.Unmarshal(b, &back); err != nil || back != m {
			t.Errorf("%s: round trip gave %+v (err=%v)", b, back, err)
		}
	}

	for _, bad := range []string{`1e400`, `99999999999999999999`, `"1/2"`, `"0x10"`, `""`} {
		var m Money
		if err := json.Unmarshal([]byte(bad), &m); err == nil {
			t.Errorf("%s: expected error, got %d cents", bad, m.Cents)
		}
	}
}

func TestMoneyAddSaturates(t *testing.T) {
	hi := Money{Cents: math.MaxInt64 - 1}
	if got := hi.Add(Money{Cents: 10}); got.Cents != math.MaxInt64 {
		t.Fatalf("expected saturation at max, got %d", got.Cents)
	}
	lo := Money{Cents: math.MinInt64 + 1}
	if got := lo.Add(Money{Cents: -10}); got.Cents != math.MinInt64 {
		t.Fatalf("expected saturation at min, got %d", got.Cents)
	}
	if got := (Money{Cents: 150}).Add(Money{Cents: -50}); got.Cents != 100 {
		t.Fatalf("expected 100, got %d", got.Cents)
	}
}
