// Package sweep runs the periodic decay pass over the guild mute cache.
// Each pass evaluates, for every tracked user, first the unmute transition
// (against the pre-decay mute expiry) and then the streak-decay transition.
// The two are independent: an unmute never touches the streak, and a streak
// may decay while a long mute is still in force.
//
// Failures are isolated per entry: one user's or one channel's platform
// error must not stop the rest of the sweep.
package sweep

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-stunlock-bot/internal/mute"
	"github.com/tbourn/go-stunlock-bot/internal/observability"
	"github.com/tbourn/go-stunlock-bot/internal/platform"
	"github.com/tbourn/go-stunlock-bot/internal/repo"
)

// Sweeper walks the mute cache on a fixed interval, clearing expired mutes
// and decaying stale streaks.
type Sweeper struct {
	// Now supplies the current time; tests override it.
	Now func() time.Time

	Interval time.Duration
	DB       *gorm.DB
	Ledger   *mute.Ledger
	Client   platform.Client
	Log      zerolog.Logger
}

// New constructs a Sweeper with the given tick interval.
func New(db *gorm.DB, ledger *mute.Ledger, client platform.Client, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		Now:      time.Now,
		Interval: interval,
		DB:       db,
		Ledger:   ledger,
		Client:   client,
		Log:      log.With().Str("component", "sweep").Logger(),
	}
}

// Run sweeps until ctx is cancelled. The interval is short so mute expiry
// feels near-real-time to users.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Log.Info().Msg("sweeper stopped")
			return
		case <-t.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single pass over every guild and user in the cache.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.Log.With().Str("sweep_id", runID).Logger()
	now := s.Now().Unix()

	for guildID, users := range s.Ledger.Snapshot() {
		channels, err := repo.ListWhitelisted(ctx, s.DB, guildID)
		if err != nil {
			observability.SweepErrors.Inc()
			log.Error().Err(err).Str("guild_id", guildID).Msg("list whitelisted channels")
			continue
		}
		for userID, rec := range users {
			s.sweepEntry(ctx, log, guildID, userID, rec, channels, now)
		}
	}

	observability.SweepDuration.Observe(time.Since(start).Seconds())
}

// sweepEntry evaluates both transitions for one (guild, user) entry.
func (s *Sweeper) sweepEntry(ctx context.Context, log zerolog.Logger, guildID, userID string, rec mute.Record, channels []string, now int64) {
	if rec.Muted() && now >= rec.MuteUntil {
		s.unmute(ctx, log, guildID, userID, channels)
	}

	res, err := s.Ledger.Decay(ctx, guildID, userID)
	if err != nil {
		observability.SweepErrors.Inc()
		log.Error().Err(err).
			Str("guild_id", guildID).
			Str("user_id", userID).
			Msg("decay streak")
		return
	}
	if res.Changed {
		observability.StreakDecays.Inc()
		ev := log.Debug().Str("guild_id", guildID).Str("user_id", userID)
		if res.Removed {
			ev.Msg("streak decayed to zero, record cleared")
		} else {
			ev.Uint32("streak", res.Record.Streak).Msg("streak decayed")
		}
	}
}

// unmute reverses the mute overwrite in every whitelisted channel, then
// clears the mute in the ledger and notifies the user. If any channel edit
// fails, the mute expiry is left stale so the next sweep retries the edit.
func (s *Sweeper) unmute(ctx context.Context, log zerolog.Logger, guildID, userID string, channels []string) {
	failed := false
	for _, ch := range channels {
		if err := s.Client.EditChannelPermissions(ctx, ch, userID, 0, 0); err != nil {
			failed = true
			observability.SweepErrors.Inc()
			log.Warn().Err(err).
				Str("channel_id", ch).
				Str("user_id", userID).
				Msg("clear mute overwrite")
		}
	}
	if failed {
		return
	}

	if _, ok, err := s.Ledger.ClearMute(ctx, guildID, userID); err != nil {
		observability.SweepErrors.Inc()
		log.Error().Err(err).
			Str("guild_id", guildID).
			Str("user_id", userID).
			Msg("clear mute")
		return
	} else if !ok {
		return
	}

	observability.Unmutes.Inc()
	if err := s.Client.SendDirectMessage(ctx, userID, "Your mute has expired. Mind the duplicates."); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("send unmute notice")
	}
}
