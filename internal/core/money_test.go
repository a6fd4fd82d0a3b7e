package core

import (
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"23.50", 2350, true},
		{"¥23.50", 2350, true},
		{"￥8.00", 800, true},
		{"-12.30", 1230, true},
		{"+5", 500, true},
		{"1,234.56", 123456, true},
		{"=100.00", 10000, true},
		{"(12.345)", 1235, true}, // half away from zero
		{"1.005", 101, true},
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{"0.00", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"¥", 0, false},
		{"-", 0, false},
		{"92233720368547758.07", math.MaxInt64, true},
		{"92233720368547758.08", 0, false},
		{"99999999999999999999", 0, false},
		{"1e20", 0, false},
		{"-1e20", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		2350:   "23.50",
		123456: "1234.56",
		-150:   "-1.50",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Cents: 1000}
	b := Money{Cents: 250}
	if got := a.Add(b); got.Cents != 1250 {
		t.Fatalf("Add = %d", got.Cents)
	}
	if got := b.Sub(a); got.Cents != -750 {
		t.Fatalf("Sub = %d", got.Cents)
	}
	if got := (Money{Cents: 2350}).Yuan(); got != 23.5 {
		t.Fatalf("Yuan = %v", got)
	}
}
