// Package dispatch wires inbound message events to duplicate detection and
// mute escalation. On every new or substantively edited message it computes
// the content fingerprint under the guild's scoping mode, checks and records
// it against the registry. When the channel is whitelisted and the content
// was already seen, it deletes the message and escalates the author's mute
// penalty.
//
// Recording policy: guilds in global mode always record into the shared
// corpus (whitelisting only gates enforcement); guilds in private mode never
// record outside whitelisted channels.
package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-stunlock-bot/internal/fingerprint"
	"github.com/tbourn/go-stunlock-bot/internal/mute"
	"github.com/tbourn/go-stunlock-bot/internal/observability"
	"github.com/tbourn/go-stunlock-bot/internal/platform"
	"github.com/tbourn/go-stunlock-bot/internal/repo"
	"github.com/tbourn/go-stunlock-bot/internal/sysutil"
)

// Dispatcher is the moderation entry point for message events and
// moderator-issued mutes and streak edits.
type Dispatcher struct {
	DB     *gorm.DB
	Ledger *mute.Ledger
	Client platform.Client

	// Salt is the process-wide secret mixed into private-mode fingerprints.
	// Never logged.
	Salt string

	// DefaultPrefix seeds the settings row for newly seen guilds.
	DefaultPrefix string

	Log zerolog.Logger
}

// New constructs a Dispatcher.
func New(db *gorm.DB, ledger *mute.Ledger, client platform.Client, salt, defaultPrefix string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		DB:            db,
		Ledger:        ledger,
		Client:        client,
		Salt:          salt,
		DefaultPrefix: defaultPrefix,
		Log:           log.With().Str("component", "dispatch").Logger(),
	}
}

// HandleMessage processes a newly created message.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg platform.Message) {
	d.check(ctx, msg)
}

// HandleMessageEdit processes an edited message. Edits whose normalized
// content is unchanged carry no new signal and are ignored.
func (d *Dispatcher) HandleMessageEdit(ctx context.Context, old *platform.Message, msg platform.Message) {
	if old != nil && fingerprint.Compute(old.Content, nil) == fingerprint.Compute(msg.Content, nil) {
		return
	}
	d.check(ctx, msg)
}

func (d *Dispatcher) check(ctx context.Context, msg platform.Message) {
	if msg.Author.Bot || msg.GuildID == "" {
		return
	}

	settings, err := repo.GetOrCreateSettings(ctx, d.DB, msg.GuildID, d.DefaultPrefix)
	if err != nil {
		d.Log.Error().Err(err).Str("guild_id", msg.GuildID).Msg("load guild settings")
		return
	}

	whitelisted, err := repo.IsWhitelisted(ctx, d.DB, msg.GuildID, msg.ChannelID)
	if err != nil {
		d.Log.Error().Err(err).Str("guild_id", msg.GuildID).Msg("whitelist lookup")
		return
	}

	var fp fingerprint.Fingerprint
	if settings.Global {
		fp = fingerprint.Compute(msg.Content, nil)
	} else if whitelisted {
		fp = fingerprint.Compute(msg.Content, &fingerprint.Scope{
			Salt:      d.Salt,
			GuildID:   msg.GuildID,
			ChannelID: msg.ChannelID,
		})
	} else {
		// Private mode outside the whitelist: nothing to enforce, nothing
		// worth retaining.
		return
	}

	observability.MessagesChecked.Inc()

	seen, err := repo.SeenFingerprint(ctx, d.DB, fp.String())
	if err != nil {
		d.Log.Error().Err(err).Str("guild_id", msg.GuildID).Msg("fingerprint lookup")
		return
	}
	if !seen {
		if err := repo.RecordFingerprint(ctx, d.DB, fp.String()); err != nil {
			d.Log.Error().Err(err).Str("guild_id", msg.GuildID).Msg("fingerprint record")
		}
		return
	}

	if !whitelisted {
		return
	}

	observability.DuplicatesDetected.Inc()

	if err := d.Client.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		d.Log.Warn().Err(err).
			Str("channel_id", msg.ChannelID).
			Str("message_id", msg.ID).
			Msg("delete duplicate message")
	}

	if err := d.Escalate(ctx, msg.GuildID, msg.ChannelID, msg.Author, "auto"); err != nil {
		d.Log.Error().Err(err).
			Str("guild_id", msg.GuildID).
			Str("user_id", msg.Author.ID).
			Msg("escalate")
	}
}

// Escalate applies one escalation transition for the user and carries out
// its side effects: a permission overwrite denying send/react in every
// whitelisted channel of the guild, and a notice in noticeChannelID.
// Per-channel failures are logged and do not abort the rest.
func (d *Dispatcher) Escalate(ctx context.Context, guildID, noticeChannelID string, user platform.User, trigger string) error {
	rec, err := d.Ledger.Escalate(ctx, guildID, user.ID)
	if err != nil {
		return err
	}
	observability.Escalations.WithLabelValues(trigger).Inc()

	channels, err := repo.ListWhitelisted(ctx, d.DB, guildID)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if err := d.Client.EditChannelPermissions(ctx, ch, user.ID, 0, platform.MuteDeny); err != nil {
			d.Log.Warn().Err(err).
				Str("channel_id", ch).
				Str("user_id", user.ID).
				Msg("apply mute overwrite")
		}
	}

	secs := int64(mute.PenaltyDuration(rec.Streak).Seconds())
	notice := fmt.Sprintf("<@%s> has been stunlocked for %s (streak %d).",
		user.ID, sysutil.FormatSeconds(secs), rec.Streak)
	if err := d.Client.SendMessage(ctx, noticeChannelID, notice); err != nil {
		d.Log.Warn().Err(err).Str("channel_id", noticeChannelID).Msg("send mute notice")
	}
	return nil
}

// SetStreak is the moderator override for a user's streak. It returns
// mute.ErrStreakTooHigh for values above the manual bound and
// mute.ErrNoHistory when the user has no ledger entry to adjust.
func (d *Dispatcher) SetStreak(ctx context.Context, guildID, userID string, streak uint32) (mute.Record, error) {
	return d.Ledger.SetStreak(ctx, guildID, userID, streak)
}
