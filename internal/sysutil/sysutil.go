// Package sysutil holds small cross-cutting helpers: logger level setup and
// human-facing duration rendering for mute notices.
package sysutil

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// FormatSeconds renders a duration in whole seconds as "2h 3m 4s",
// omitting zero components. Zero renders as "0s".
func FormatSeconds(secs int64) string {
	if secs <= 0 {
		return "0s"
	}
	s := secs % 60
	m := (secs / 60) % 60
	h := secs / 3600

	var b strings.Builder
	if h != 0 {
		fmt.Fprintf(&b, "%dh ", h)
	}
	if m != 0 {
		fmt.Fprintf(&b, "%dm ", m)
	}
	if s != 0 {
		fmt.Fprintf(&b, "%ds", s)
	}
	return strings.TrimSpace(b.String())
}
