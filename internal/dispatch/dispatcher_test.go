package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-stunlock-bot/internal/domain"
	"github.com/tbourn/go-stunlock-bot/internal/mute"
	"github.com/tbourn/go-stunlock-bot/internal/platform"
	"github.com/tbourn/go-stunlock-bot/internal/repo"
)

// ---------- test helpers ----------

func newDispatchDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dispatch_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type permEdit struct {
	ChannelID string
	UserID    string
	Allow     int64
	Deny      int64
}

type fakeClient struct {
	mu        sync.Mutex
	deleted   []string // "channel/message"
	sent      map[string][]string
	permEdits []permEdit
}

func newFakeClient() *fakeClient {
	return &fakeClient{sent: make(map[string][]string)}
}

func (f *fakeClient) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID+"/"+messageID)
	return nil
}

func (f *fakeClient) SendMessage(_ context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[channelID] = append(f.sent[channelID], content)
	return nil
}

func (f *fakeClient) SendDirectMessage(context.Context, string, string) error { return nil }

func (f *fakeClient) EditChannelPermissions(_ context.Context, channelID, userID string, allow, deny int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permEdits = append(f.permEdits, permEdit{channelID, userID, allow, deny})
	return nil
}

func (f *fakeClient) ResolveUser(_ context.Context, userID string) (platform.User, error) {
	return platform.User{ID: userID}, nil
}

func (f *fakeClient) ResolveChannel(_ context.Context, channelID string) (platform.Channel, error) {
	return platform.Channel{ID: channelID}, nil
}

func (f *fakeClient) MemberPermissions(context.Context, string, string, string) (int64, error) {
	return 0, nil
}

func newDispatcher(t *testing.T, db *gorm.DB, client platform.Client, at time.Time) (*Dispatcher, *mute.Ledger) {
	t.Helper()
	ledger := mute.NewLedger(db, zerolog.Nop())
	ledger.Now = func() time.Time { return at }
	if err := ledger.Load(context.Background()); err != nil {
		t.Fatalf("ledger load: %v", err)
	}
	return New(db, ledger, client, "s3cret", "9!", zerolog.Nop()), ledger
}

func setGlobal(t *testing.T, db *gorm.DB, guildID string, global bool) {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.GetOrCreateSettings(ctx, db, guildID, "9!"); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	if err := repo.UpdateGlobal(ctx, db, guildID, global); err != nil {
		t.Fatalf("set global: %v", err)
	}
}

func whitelist(t *testing.T, db *gorm.DB, guildID string, channels ...string) {
	t.Helper()
	for _, ch := range channels {
		if err := repo.AddWhitelisted(context.Background(), db, guildID, ch); err != nil {
			t.Fatalf("seed whitelist: %v", err)
		}
	}
}

func msg(id, guild, channel, author, content string) platform.Message {
	return platform.Message{
		ID: id, GuildID: guild, ChannelID: channel, Content: content,
		Author: platform.User{ID: author, Username: "user-" + author},
	}
}

func fingerprintCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Fingerprint{}).Count(&n).Error; err != nil {
		t.Fatalf("count fingerprints: %v", err)
	}
	return n
}

// ---------- tests ----------

func TestHandleMessage_DuplicateInWhitelistedChannelEscalates(t *testing.T) {
	db := newDispatchDB(t)
	now := time.Unix(1_700_000_000, 0)
	client := newFakeClient()
	d, ledger := newDispatcher(t, db, client, now)
	ctx := context.Background()

	setGlobal(t, db, "g1", false) // private mode
	whitelist(t, db, "g1", "c1", "c2")

	// First sighting: recorded, no action.
	d.HandleMessage(ctx, msg("m1", "g1", "c1", "u1", "SPAM!!"))
	if len(client.deleted) != 0 {
		t.Fatalf("first message deleted: %v", client.deleted)
	}
	if n := fingerprintCount(t, db); n != 1 {
		t.Fatalf("fingerprints after first sighting = %d, want 1", n)
	}

	// Identical normalized content from another user: duplicate.
	d.HandleMessage(ctx, msg("m2", "g1", "c1", "u2", "spam"))

	if len(client.deleted) != 1 || client.deleted[0] != "c1/m2" {
		t.Fatalf("deleted = %v, want [c1/m2]", client.deleted)
	}
	rec, ok := ledger.Get("g1", "u2")
	if !ok || rec.Streak != 1 {
		t.Fatalf("ledger after duplicate: %+v ok=%v", rec, ok)
	}
	if rec.MuteUntil != now.Unix()+2 {
		t.Fatalf("mute_until = %d, want now+2", rec.MuteUntil)
	}

	// Deny overwrite applied in every whitelisted channel.
	if len(client.permEdits) != 2 {
		t.Fatalf("perm edits = %+v, want 2", client.permEdits)
	}
	for _, e := range client.permEdits {
		if e.UserID != "u2" || e.Deny != platform.MuteDeny || e.Allow != 0 {
			t.Fatalf("unexpected edit: %+v", e)
		}
	}

	// Notice posted in the offending channel.
	if len(client.sent["c1"]) != 1 || !strings.Contains(client.sent["c1"][0], "<@u2>") {
		t.Fatalf("notices = %+v", client.sent)
	}
}

func TestHandleMessage_NonWhitelistedPrivateModeRecordsNothing(t *testing.T) {
	db := newDispatchDB(t)
	client := newFakeClient()
	d, ledger := newDispatcher(t, db, client, time.Unix(1_700_000_000, 0))
	ctx := context.Background()

	setGlobal(t, db, "g1", false)
	// No whitelisted channels at all.

	d.HandleMessage(ctx, msg("m1", "g1", "c1", "u1", "spam"))
	d.HandleMessage(ctx, msg("m2", "g1", "c1", "u1", "spam"))

	if n := fingerprintCount(t, db); n != 0 {
		t.Fatalf("fingerprints = %d, want 0 (no retention outside whitelist)", n)
	}
	if len(client.deleted) != 0 {
		t.Fatalf("messages deleted: %v", client.deleted)
	}
	if _, ok := ledger.Get("g1", "u1"); ok {
		t.Fatal("ledger mutated without whitelisting")
	}
}

func TestHandleMessage_GlobalModeRecordsButOnlyEnforcesWhitelisted(t *testing.T) {
	db := newDispatchDB(t)
	client := newFakeClient()
	d, ledger := newDispatcher(t, db, client, time.Unix(1_700_000_000, 0))
	ctx := context.Background()

	// Default settings: global mode on, nothing whitelisted.
	d.HandleMessage(ctx, msg("m1", "g1", "c1", "u1", "spam"))
	d.HandleMessage(ctx, msg("m2", "g1", "c1", "u1", "spam"))

	// Detection bookkeeping happens even without enforcement.
	if n := fingerprintCount(t, db); n != 1 {
		t.Fatalf("fingerprints = %d, want 1", n)
	}
	if len(client.deleted) != 0 {
		t.Fatalf("messages deleted without whitelist: %v", client.deleted)
	}
	if _, ok := ledger.Get("g1", "u1"); ok {
		t.Fatal("ledger mutated without whitelisting")
	}

	// The same content in a whitelisted channel of another global guild is
	// already in the shared corpus.
	whitelist(t, db, "g2", "c9")
	d.HandleMessage(ctx, msg("m3", "g2", "c9", "u2", "S P A M"))
	if len(client.deleted) != 1 || client.deleted[0] != "c9/m3" {
		t.Fatalf("deleted = %v, want [c9/m3]", client.deleted)
	}
	if rec, ok := ledger.Get("g2", "u2"); !ok || rec.Streak != 1 {
		t.Fatalf("cross-guild enforcement failed: %+v ok=%v", rec, ok)
	}
}

func TestHandleMessage_PrivateScopesDoNotCollide(t *testing.T) {
	db := newDispatchDB(t)
	client := newFakeClient()
	d, _ := newDispatcher(t, db, client, time.Unix(1_700_000_000, 0))
	ctx := context.Background()

	setGlobal(t, db, "g1", false)
	setGlobal(t, db, "g2", false)
	whitelist(t, db, "g1", "c1")
	whitelist(t, db, "g2", "c2")

	d.HandleMessage(ctx, msg("m1", "g1", "c1", "u1", "spam"))
	d.HandleMessage(ctx, msg("m2", "g2", "c2", "u2", "spam"))

	// Same text, different private scopes: two distinct fingerprints and no
	// enforcement.
	if n := fingerprintCount(t, db); n != 2 {
		t.Fatalf("fingerprints = %d, want 2", n)
	}
	if len(client.deleted) != 0 {
		t.Fatalf("cross-scope false positive: %v", client.deleted)
	}
}

func TestHandleMessage_SkipsBotsAndDMs(t *testing.T) {
	db := newDispatchDB(t)
	client := newFakeClient()
	d, _ := newDispatcher(t, db, client, time.Unix(1_700_000_000, 0))
	ctx := context.Background()

	bot := msg("m1", "g1", "c1", "b1", "spam")
	bot.Author.Bot = true
	d.HandleMessage(ctx, bot)

	dm := msg("m2", "", "c1", "u1", "spam")
	d.HandleMessage(ctx, dm)

	if n := fingerprintCount(t, db); n != 0 {
		t.Fatalf("fingerprints = %d, want 0", n)
	}
}

func TestHandleMessageEdit_UnchangedNormalizedContentIgnored(t *testing.T) {
	db := newDispatchDB(t)
	client := newFakeClient()
	d, _ := newDispatcher(t, db, client, time.Unix(1_700_000_000, 0))
	ctx := context.Background()

	old := msg("m1", "g1", "c1", "u1", "Hello World")
	// Punctuation-only edit: same normalized content.
	edited := msg("m1", "g1", "c1", "u1", "hello, world!!")
	d.HandleMessageEdit(ctx, &old, edited)

	if n := fingerprintCount(t, db); n != 0 {
		t.Fatalf("fingerprints = %d, want 0 for a no-op edit", n)
	}

	// A substantive edit goes through the normal check.
	edited2 := msg("m1", "g1", "c1", "u1", "now for something different")
	d.HandleMessageEdit(ctx, &old, edited2)
	if n := fingerprintCount(t, db); n != 1 {
		t.Fatalf("fingerprints = %d, want 1 after substantive edit", n)
	}
}

func TestEscalate_ManualMuteMatchesAutomaticMechanics(t *testing.T) {
	db := newDispatchDB(t)
	now := time.Unix(1_700_000_000, 0)
	client := newFakeClient()
	d, ledger := newDispatcher(t, db, client, now)
	ctx := context.Background()

	whitelist(t, db, "g1", "c1")

	user := platform.User{ID: "u9", Username: "target"}
	if err := d.Escalate(ctx, "g1", "c-mod", user, "manual"); err != nil {
		t.Fatalf("Escalate: %v", err)
	}

	rec, ok := ledger.Get("g1", "u9")
	if !ok || rec.Streak != 1 || rec.MuteUntil != now.Unix()+2 {
		t.Fatalf("manual mute record: %+v ok=%v", rec, ok)
	}
	if len(client.permEdits) != 1 || client.permEdits[0].ChannelID != "c1" {
		t.Fatalf("perm edits = %+v", client.permEdits)
	}
	if len(client.sent["c-mod"]) != 1 {
		t.Fatalf("notice not sent to invoking channel: %+v", client.sent)
	}
}

func TestSetStreak_PropagatesLedgerErrors(t *testing.T) {
	db := newDispatchDB(t)
	client := newFakeClient()
	d, _ := newDispatcher(t, db, client, time.Unix(1_700_000_000, 0))
	ctx := context.Background()

	if _, err := d.SetStreak(ctx, "g1", "u1", 17); !errors.Is(err, mute.ErrStreakTooHigh) {
		t.Fatalf("SetStreak(17): err = %v", err)
	}
	if _, err := d.SetStreak(ctx, "g1", "u1", 3); !errors.Is(err, mute.ErrNoHistory) {
		t.Fatalf("SetStreak without history: err = %v", err)
	}
}
