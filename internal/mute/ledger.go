package mute

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-stunlock-bot/internal/domain"
	"github.com/tbourn/go-stunlock-bot/internal/repo"
)

const (
	// MaxManualStreak bounds moderator-issued streak adjustments.
	MaxManualStreak = 16

	// maxEscalationStreak caps the exponent used for mute durations so the
	// shift can never overflow uint64. Escalations past this point keep the
	// maximum duration.
	maxEscalationStreak = 31

	// decayPeriod is how long a streak must sit untouched before it loses
	// one step. Partial periods carry forward via StreakTime.
	decayPeriod = 21600 // 6h in seconds
)

// Record is one user's in-memory ledger entry. Streak is always >= 1 for a
// record that exists; MuteUntil == 0 means the user is not currently muted
// but their streak is still decaying.
type Record struct {
	Streak     uint32
	StreakTime int64
	MuteUntil  int64
}

// Muted reports whether the record carries an active mute penalty.
func (r Record) Muted() bool { return r.MuteUntil != 0 }

// PenaltyDuration returns the mute duration applied at the given streak:
// 2^(2*streak-1) seconds, i.e. 2s, 8s, 32s, 128s, quadrupling each step.
func PenaltyDuration(streak uint32) time.Duration {
	if streak == 0 {
		return 0
	}
	if streak > maxEscalationStreak {
		streak = maxEscalationStreak
	}
	return time.Duration(uint64(1)<<(2*streak-1)) * time.Second
}

// DecayResult describes what a decay evaluation did to a record.
type DecayResult struct {
	Record  Record
	Changed bool
	Removed bool
}

// Ledger is the guild mute cache: guild id -> user id -> Record, mirrored to
// durable storage. Every mutation writes through to the database before the
// updated entry becomes visible to concurrent readers, so losing the cache
// (process restart) never loses mute state.
//
// A single RWMutex guards the whole map. Coarse, but it serializes per-user
// read-modify-write, which is the correctness requirement; moderation-bot
// scale does not need a sharded lock.
type Ledger struct {
	// Now supplies the current time; tests override it.
	Now func() time.Time

	db  *gorm.DB
	log zerolog.Logger

	mu    sync.RWMutex
	cache map[string]map[string]Record
}

// NewLedger constructs an empty ledger backed by db. Call Load to warm the
// cache from storage before serving traffic.
func NewLedger(db *gorm.DB, log zerolog.Logger) *Ledger {
	return &Ledger{
		Now:   time.Now,
		db:    db,
		log:   log.With().Str("component", "mute_ledger").Logger(),
		cache: make(map[string]map[string]Record),
	}
}

// Load rebuilds the in-memory cache from every persisted mute record.
// Storage is authoritative; the cache is an optimization over it.
func (l *Ledger) Load(ctx context.Context) error {
	rows, err := repo.ListMuteRecords(ctx, l.db)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]map[string]Record)
	for _, r := range rows {
		g := l.cache[r.GuildID]
		if g == nil {
			g = make(map[string]Record)
			l.cache[r.GuildID] = g
		}
		g[r.UserID] = Record{Streak: r.Streak, StreakTime: r.StreakTime, MuteUntil: r.MuteUntil}
	}
	l.log.Info().Int("records", len(rows)).Msg("mute cache warmed from storage")
	return nil
}

// Get returns the record for (guild, user), if any.
func (l *Ledger) Get(guildID, userID string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.cache[guildID][userID]
	return rec, ok
}

// Snapshot returns a copy of the whole cache for iteration by the decay
// sweeper. Mutating the copy has no effect on the ledger.
func (l *Ledger) Snapshot() map[string]map[string]Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]map[string]Record, len(l.cache))
	for gid, users := range l.cache {
		g := make(map[string]Record, len(users))
		for uid, rec := range users {
			g[uid] = rec
		}
		out[gid] = g
	}
	return out
}

// Escalate applies one escalation transition for (guild, user): a first
// offense creates the record at streak 1, a repeat offense increments it.
// The new mute expiry is now + PenaltyDuration(new streak). The database is
// written before the cache entry is updated.
func (l *Ledger) Escalate(ctx context.Context, guildID, userID string) (Record, error) {
	now := l.Now().Unix()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.cache[guildID][userID] // zero Record when absent
	rec.Streak++
	rec.StreakTime = now
	rec.MuteUntil = now + int64(PenaltyDuration(rec.Streak)/time.Second)

	if err := l.persist(ctx, guildID, userID, rec); err != nil {
		return Record{}, err
	}
	l.put(guildID, userID, rec)
	return rec, nil
}

// SetStreak is the moderator override: it sets the streak directly and
// resets StreakTime to now, leaving MuteUntil untouched. Values above
// MaxManualStreak are rejected; a missing record fails with ErrNoHistory
// rather than being created; setting 0 clears the record entirely.
func (l *Ledger) SetStreak(ctx context.Context, guildID, userID string, streak uint32) (Record, error) {
	if streak > MaxManualStreak {
		return Record{}, ErrStreakTooHigh
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.cache[guildID][userID]
	if !ok {
		return Record{}, ErrNoHistory
	}

	if streak == 0 {
		if err := repo.DeleteMuteRecord(ctx, l.db, guildID, userID); err != nil {
			return Record{}, err
		}
		l.remove(guildID, userID)
		return Record{}, nil
	}

	rec.Streak = streak
	rec.StreakTime = l.Now().Unix()
	if err := l.persist(ctx, guildID, userID, rec); err != nil {
		return Record{}, err
	}
	l.put(guildID, userID, rec)
	return rec, nil
}

// ClearMute marks (guild, user) as no longer muted without touching the
// streak. Returns the updated record; ok is false when no record exists.
func (l *Ledger) ClearMute(ctx context.Context, guildID, userID string) (Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.cache[guildID][userID]
	if !ok {
		return Record{}, false, nil
	}
	if !rec.Muted() {
		return rec, true, nil
	}

	rec.MuteUntil = 0
	if err := l.persist(ctx, guildID, userID, rec); err != nil {
		return Record{}, true, err
	}
	l.put(guildID, userID, rec)
	return rec, true, nil
}

// Decay applies the streak-decay transition: one streak step is removed per
// full decay period elapsed since StreakTime, the remainder carried forward.
// A streak reaching 0 deletes the record from storage and cache.
func (l *Ledger) Decay(ctx context.Context, guildID, userID string) (DecayResult, error) {
	now := l.Now().Unix()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.cache[guildID][userID]
	if !ok {
		return DecayResult{}, nil
	}

	elapsed := now - rec.StreakTime
	if rec.Streak == 0 || elapsed < decayPeriod {
		return DecayResult{Record: rec}, nil
	}

	steps := uint32(elapsed / decayPeriod)
	if steps >= rec.Streak {
		if err := repo.DeleteMuteRecord(ctx, l.db, guildID, userID); err != nil {
			return DecayResult{}, err
		}
		l.remove(guildID, userID)
		return DecayResult{Changed: true, Removed: true}, nil
	}

	rec.Streak -= steps
	rec.StreakTime += int64(steps) * decayPeriod
	if err := l.persist(ctx, guildID, userID, rec); err != nil {
		return DecayResult{}, err
	}
	l.put(guildID, userID, rec)
	return DecayResult{Record: rec, Changed: true}, nil
}

// persist writes the record through to storage. Callers hold l.mu.
func (l *Ledger) persist(ctx context.Context, guildID, userID string, rec Record) error {
	return repo.UpsertMuteRecord(ctx, l.db, &domain.MuteRecord{
		GuildID:    guildID,
		UserID:     userID,
		Streak:     rec.Streak,
		StreakTime: rec.StreakTime,
		MuteUntil:  rec.MuteUntil,
	})
}

func (l *Ledger) put(guildID, userID string, rec Record) {
	g := l.cache[guildID]
	if g == nil {
		g = make(map[string]Record)
		l.cache[guildID] = g
	}
	g[userID] = rec
}

func (l *Ledger) remove(guildID, userID string) {
	if g, ok := l.cache[guildID]; ok {
		delete(g, userID)
		if len(g) == 0 {
			delete(l.cache, guildID)
		}
	}
}
