// Package domain defines the persistence models for guild settings,
// whitelisted channels, duplicate-content fingerprints, and per-user mute
// records. These types are mapped with GORM and form the core data layer
// of the moderation bot.
package domain

import "time"

// GuildSettings holds the per-guild configuration row. A row is created the
// first time the bot sees a guild and is never deleted.
//
// Fields:
//   - GuildID: platform snowflake of the guild (primary key).
//   - Prefix: command prefix used in that guild.
//   - Global: whether the guild contributes to (and checks against) the
//     shared cross-guild fingerprint corpus instead of a salted private one.
type GuildSettings struct {
	GuildID   string    `json:"guild_id" gorm:"type:varchar(32);primaryKey"`
	Prefix    string    `json:"prefix"   gorm:"type:varchar(16);not null;default:'9!'"`
	Global    bool      `json:"global"   gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for GuildSettings.
func (GuildSettings) TableName() string { return "guild_settings" }

// WhitelistedChannel marks a channel where duplicate enforcement is active.
// A single composite-keyed table replaces the original one-table-per-guild
// scheme.
type WhitelistedChannel struct {
	GuildID   string    `json:"guild_id"   gorm:"type:varchar(32);primaryKey"`
	ChannelID string    `json:"channel_id" gorm:"type:varchar(32);primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for WhitelistedChannel.
func (WhitelistedChannel) TableName() string { return "whitelisted_channels" }

// Fingerprint is one previously-seen content digest. Existence alone is the
// signal: no payload, no expiry, rows are never deleted. The hash is stored
// as a fixed-width lowercase hex rendering of the 128-bit value.
type Fingerprint struct {
	Hash      string    `json:"hash" gorm:"type:char(32);primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Fingerprint.
func (Fingerprint) TableName() string { return "fingerprints" }

// MuteRecord is the durable half of a user's mute ledger: the escalation
// streak, when the streak last changed, and when the current mute expires.
// MuteUntil == 0 means the user is not currently muted (the streak may still
// be decaying). A record with streak 0 is never stored; absence is the
// clean state.
type MuteRecord struct {
	GuildID    string    `json:"guild_id"    gorm:"type:varchar(32);primaryKey"`
	UserID     string    `json:"user_id"     gorm:"type:varchar(32);primaryKey"`
	Streak     uint32    `json:"streak"      gorm:"not null"`
	StreakTime int64     `json:"streak_time" gorm:"not null"` // unix seconds
	MuteUntil  int64     `json:"mute_until"  gorm:"not null"` // unix seconds, 0 = not muted
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for MuteRecord.
func (MuteRecord) TableName() string { return "mute_records" }
