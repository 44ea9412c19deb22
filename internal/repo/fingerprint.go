// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the append-only
// duplicate-content fingerprint registry.
//
// The registry is existence-only: rows carry no payload and are never
// deleted. Recording is idempotent, and two moderation checks racing to
// insert the same fingerprint must both succeed, so a UNIQUE violation on
// insert is swallowed rather than surfaced.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-stunlock-bot/internal/domain"
)

// SeenFingerprint reports whether the fingerprint has been recorded before.
func SeenFingerprint(ctx context.Context, db *gorm.DB, hash string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Fingerprint{}).
		Where("hash = ?", hash).
		Count(&n).Error
	return n > 0, err
}

// RecordFingerprint inserts the fingerprint into the registry. Recording an
// already-seen fingerprint is a no-op; an insert racing with another insert
// of the same value is not an error.
func RecordFingerprint(ctx context.Context, db *gorm.DB, hash string) error {
	err := db.WithContext(ctx).Create(&domain.Fingerprint{Hash: hash}).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// isUniqueViolation reports whether err is a primary-key/unique-index
// violation. glebarez/sqlite often returns plain-text errors for UNIQUE
// violations, so the message is inspected as a fallback.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
