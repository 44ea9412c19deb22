// Package mute implements the escalation/decay state machine for per-user
// mute penalties and the write-through guild mute cache that owns it.
// This file centralizes the package's error values so callers can translate
// them into user-facing replies consistently.
package mute

import "errors"

var (
	// ErrNoHistory is returned when a manual streak adjustment targets a
	// user with no existing ledger entry. Manual set-streak adjusts
	// existing escalation state; it never initiates it.
	ErrNoHistory = errors.New("no mute history to modify")

	// ErrStreakTooHigh is returned when a manual streak adjustment exceeds
	// MaxManualStreak. No mutation is performed.
	ErrStreakTooHigh = errors.New("streak value out of range")
)
