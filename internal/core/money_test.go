package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToAmount(t *testing.T) {
	cases := []struct {
		in  any
		out string
	}{
		{nil, "0"},
		{"", "0"},
		{"   ", "0"},
		{"abc", "0"},
		{"12.5", "12.5"},
		{" 7 ", "7"},
		{12, "12"},
		{int64(-3), "-3"},
		{uint64(5), "5"},
		{1.25, "1.25"},
		{math.NaN(), "0"},
		{math.Inf(1), "0"},
		{json.Number("99.99"), "99.99"},
		{true, "0"},
		{[]int{1}, "0"},
		{decimal.RequireFromString("0.1"), "0.1"},
	}
	for _, tc := range cases {
		got := ToAmount(tc.in)
		if !got.Equal(decimal.RequireFromString(tc.out)) {
			t.Fatalf("ToAmount(%#v) = %s, want %s", tc.in, got, tc.out)
		}
	}
}

func TestAmountUnmarshalIsLenient(t *testing.T) {
	var v struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
		D Amount `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a": "10.10", "b": "x", "c": null, "d": 0.2}`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.A.Equal(decimal.RequireFromString("10.10")) {
		t.Fatalf("a = %s", v.A)
	}
	if !v.B.IsZero() || !v.C.IsZero() {
		t.Fatalf("expected zero for junk and null, got %s and %s", v.B, v.C)
	}
	if !v.D.Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("d = %s", v.D)
	}
}

func TestDecimalAccumulationKeepsPrecision(t *testing.T) {
	total := Sum(ToAmount("0.1"), ToAmount("0.2"))
	if !total.Equal(decimal.RequireFromString("0.3")) {
		t.Fatalf("0.1+0.2 = %s", total)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{"1.234,56", "1234.56", true},
		{" 2,5 ", "2.5", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{"-", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestNormalizeAmountInput(t *testing.T) {
	cases := map[string]string{
		"":         "",
		"50":       "50,00",
		"50,":      "50,00",
		"50,5":     "50,50",
		"50,567":   "50,56",
		" 1 000,1": "1000,10",
	}
	for in, want := range cases {
		if got := NormalizeAmountInput(in); got != want {
			t.Fatalf("NormalizeAmountInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := map[string]string{
		"0":           "R$ 0,00",
		"1234.5":      "R$ 1.234,50",
		"1234567.891": "R$ 1.234.567,89",
		"-10":         "-R$ 10,00",
		"999":         "R$ 999,00",
	}
	for in, want := range cases {
		if got := FormatBRL(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatBRL(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestParseGoalInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"   ", "0"},
		{"abc", "0"},
		{"150", "150"},
		{"1.500", "1500"},
		{"1.500,5", "1500.5"},
		{"12,345", "12.34"},
		{"0", "0"},
	}
	for _, tt := range tests {
		if got := ParseGoalInput(tt.in); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("ParseGoalInput(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
