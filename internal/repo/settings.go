// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for guild settings
// and the per-guild channel whitelist.
//
// Error semantics:
//   - When a row is not found, functions return ErrNotFound
//     (aliasing gorm.ErrRecordNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-stunlock-bot/internal/domain"
)

// GetOrCreateSettings fetches the settings row for a guild, inserting the
// defaults the first time the guild is seen. The defaultPrefix argument is
// only used for the insert.
func GetOrCreateSettings(ctx context.Context, db *gorm.DB, guildID, defaultPrefix string) (*domain.GuildSettings, error) {
	var gs domain.GuildSettings
	err := db.WithContext(ctx).Where("guild_id = ?", guildID).First(&gs).Error
	if err == nil {
		return &gs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	gs = domain.GuildSettings{GuildID: guildID, Prefix: defaultPrefix, Global: true}
	if err := db.WithContext(ctx).Create(&gs).Error; err != nil {
		// A concurrent handler may have inserted the row first.
		var again domain.GuildSettings
		if e2 := db.WithContext(ctx).Where("guild_id = ?", guildID).First(&again).Error; e2 == nil {
			return &again, nil
		}
		return nil, err
	}
	return &gs, nil
}

// UpdatePrefix sets the command prefix for a guild.
// Returns ErrNotFound if the settings row does not exist.
func UpdatePrefix(ctx context.Context, db *gorm.DB, guildID, prefix string) error {
	res := db.WithContext(ctx).
		Model(&domain.GuildSettings{}).
		Where("guild_id = ?", guildID).
		Update("prefix", prefix)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateGlobal flips the global-dataset flag for a guild.
// Returns ErrNotFound if the settings row does not exist.
func UpdateGlobal(ctx context.Context, db *gorm.DB, guildID string, global bool) error {
	res := db.WithContext(ctx).
		Model(&domain.GuildSettings{}).
		Where("guild_id = ?", guildID).
		Update("global", global)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsWhitelisted reports whether enforcement is active in the given channel.
func IsWhitelisted(ctx context.Context, db *gorm.DB, guildID, channelID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.WhitelistedChannel{}).
		Where("guild_id = ? AND channel_id = ?", guildID, channelID).
		Count(&n).Error
	return n > 0, err
}

// ListWhitelisted returns the IDs of every whitelisted channel in a guild,
// ordered by insertion time.
func ListWhitelisted(ctx context.Context, db *gorm.DB, guildID string) ([]string, error) {
	var rows []domain.WhitelistedChannel
	err := db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at ASC, channel_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ChannelID)
	}
	return out, nil
}

// AddWhitelisted inserts a channel into the guild whitelist. Inserting a
// channel that is already present is a no-op.
func AddWhitelisted(ctx context.Context, db *gorm.DB, guildID, channelID string) error {
	err := db.WithContext(ctx).Create(&domain.WhitelistedChannel{
		GuildID:   guildID,
		ChannelID: channelID,
	}).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// RemoveWhitelisted deletes a channel from the guild whitelist.
// Returns ErrNotFound if the channel was not whitelisted.
func RemoveWhitelisted(ctx context.Context, db *gorm.DB, guildID, channelID string) error {
	res := db.WithContext(ctx).
		Where("guild_id = ? AND channel_id = ?", guildID, channelID).
		Delete(&domain.WhitelistedChannel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
