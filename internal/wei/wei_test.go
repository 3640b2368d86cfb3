package wei

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseEther(t *testing.T) {
	tests := []struct {
		in   string
		want string // wei, decimal
	}{
		{"1.5", "1500000000000000000"},
		{"2.0", "2000000000000000000"},
		{"0", "0"},
		{"0.000000000000000001", "1"}, // one wei
		{"1000000", "1000000000000000000000000"},
		{"0.1", "100000000000000000"},
	}

	for _, tt := range tests {
		got, err := ParseEther(tt.in)
		if err != nil {
			t.Fatalf("ParseEther(%q): %v", tt.in, err)
		}
		if got.String() != tt.want {
			t.Errorf("ParseEther(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseEther_Invalid(t *testing.T) {
	tests := []struct {
		in      string
		wantErr error
	}{
		{"", ErrNotANumber},
		{"abc", ErrNotANumber},
		{"1.5.0", ErrNotANumber},
		{"-1", ErrNegative},
		{"-0.5", ErrNegative},
		{"0.0000000000000000001", ErrTooPrecise}, // 19 fractional digits
	}

	for _, tt := range tests {
		_, err := ParseEther(tt.in)
		if err == nil {
			t.Errorf("ParseEther(%q): expected error, got nil", tt.in)
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ParseEther(%q) = %v, want %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  string
		want string
	}{
		{"1500000000000000000", "1.5"},
		{"2000000000000000000", "2"},
		{"1", "0.000000000000000001"},
		{"0", "0"},
	}

	for _, tt := range tests {
		w, ok := new(big.Int).SetString(tt.wei, 10)
		if !ok {
			t.Fatalf("bad test input %q", tt.wei)
		}
		if got := FormatEther(w); got != tt.want {
			t.Errorf("FormatEther(%s) = %q, want %q", tt.wei, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	// Valid decimal strings survive ether -> wei -> ether unchanged.
	for _, s := range []string{"1.5", "0.25", "3", "0.000000000000000001", "123.456789"} {
		w, err := ParseEther(s)
		if err != nil {
			t.Fatalf("ParseEther(%q): %v", s, err)
		}
		if got := FormatEther(w); got != s {
			t.Errorf("round trip %q -> %s -> %q", s, w, got)
		}
	}
}

func TestFormatEther_Nil(t *testing.T) {
	if got := FormatEther(nil); got != "0" {
		t.Errorf("FormatEther(nil) = %q, want \"0\"", got)
	}
}
