// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for per-user mute
// records. The in-memory mute cache (internal/mute) is the only caller; it
// writes through these helpers before exposing any change to readers.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-stunlock-bot/internal/domain"
)

// UpsertMuteRecord inserts or replaces the mute record for (guild, user).
func UpsertMuteRecord(ctx context.Context, db *gorm.DB, rec *domain.MuteRecord) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"streak", "streak_time", "mute_until", "updated_at",
		}),
	}).Create(rec).Error
}

// DeleteMuteRecord removes the mute record for (guild, user). Deleting a
// record that does not exist is a no-op.
func DeleteMuteRecord(ctx context.Context, db *gorm.DB, guildID, userID string) error {
	return db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Delete(&domain.MuteRecord{}).Error
}

// ListMuteRecords returns every persisted mute record, ordered
// deterministically. Used to warm the cache on process start.
func ListMuteRecords(ctx context.Context, db *gorm.DB) ([]domain.MuteRecord, error) {
	var out []domain.MuteRecord
	err := db.WithContext(ctx).
		Order("guild_id ASC, user_id ASC").
		Find(&out).Error
	return out, err
}
