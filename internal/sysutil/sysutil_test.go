package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestFormatSeconds(t *testing.T) {
	cases := []struct {
		secs int64
		want string
	}{
		{0, "0s"},
		{-5, "0s"},
		{2, "2s"},
		{8, "8s"},
		{32, "32s"},
		{60, "1m"},
		{128, "2m 8s"},
		{512, "8m 32s"},
		{3600, "1h"},
		{7384, "2h 3m 4s"},
		{8192, "2h 16m 32s"},
		{131072, "36h 24m 32s"},
	}
	for _, tc := range cases {
		if got := FormatSeconds(tc.secs); got != tc.want {
			t.Errorf("FormatSeconds(%d) = %q, want %q", tc.secs, got, tc.want)
		}
	}
}

func TestSetLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Errorf("SetLogLevel(%q): global level = %v, want %v", tc.in, got, tc.want)
		}
	}
}
