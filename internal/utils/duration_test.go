package utils

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"45s", 45 * time.Second},
		{"30m", 30 * time.Minute},
		{"1h", time.Hour},
		{"2d", 48 * time.Hour},
		{"28d", 28 * 24 * time.Hour},
		{" 10M ", 10 * time.Minute},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.raw)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDuration(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestParseDurationRejects(t *testing.T) {
	for _, raw := range []string{"", "m", "10", "10x", "-5m", "0h", "29d", "1.5h"} {
		if _, err := ParseDuration(raw); err == nil {
			t.Fatalf("ParseDuration(%q) should fail", raw)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{90 * time.Second, "90s"},
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{24 * time.Hour, "1d"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Fatalf("FormatDuration(%s) = %s, want %s", tc.d, got, tc.want)
		}
	}
}
