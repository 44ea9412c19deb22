// Package commands implements the prefix-command surface: manual mutes,
// streak edits, guild settings, and meta commands. Malformed input is
// reported back to the invoking user and never crashes the dispatcher.
package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-stunlock-bot/internal/dispatch"
	"github.com/tbourn/go-stunlock-bot/internal/mute"
	"github.com/tbourn/go-stunlock-bot/internal/platform"
	"github.com/tbourn/go-stunlock-bot/internal/repo"
)

var (
	userMentionRE    = regexp.MustCompile(`^<@!?(\d+)>$`)
	channelMentionRE = regexp.MustCompile(`^<#(\d+)>$`)
)

// Router parses prefix commands out of inbound messages and executes them.
type Router struct {
	DB            *gorm.DB
	Dispatcher    *dispatch.Dispatcher
	Client        platform.Client
	DefaultPrefix string
	Log           zerolog.Logger
}

// New constructs a Router.
func New(db *gorm.DB, d *dispatch.Dispatcher, client platform.Client, defaultPrefix string, log zerolog.Logger) *Router {
	return &Router{
		DB:            db,
		Dispatcher:    d,
		Client:        client,
		DefaultPrefix: defaultPrefix,
		Log:           log.With().Str("component", "commands").Logger(),
	}
}

// Handle runs msg through the command parser. It returns true when the
// message was a command invocation (whether or not it succeeded).
func (r *Router) Handle(ctx context.Context, msg platform.Message) bool {
	if msg.Author.Bot || msg.GuildID == "" {
		return false
	}

	settings, err := repo.GetOrCreateSettings(ctx, r.DB, msg.GuildID, r.DefaultPrefix)
	if err != nil {
		r.Log.Error().Err(err).Str("guild_id", msg.GuildID).Msg("load guild settings")
		return false
	}
	if !strings.HasPrefix(msg.Content, settings.Prefix) {
		return false
	}

	fields := strings.Fields(strings.TrimPrefix(msg.Content, settings.Prefix))
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "ping":
		r.reply(ctx, msg, "Pong!")
	case "help":
		r.reply(ctx, msg, helpText(settings.Prefix))
	case "mute", "stunlock":
		r.requireperm(ctx, msg, platform.PermissionManageMessages, func() {
			r.muteCommand(ctx, msg, args)
		})
	case "streak", "setstreak":
		r.requireperm(ctx, msg, platform.PermissionManageMessages, func() {
			r.streakCommand(ctx, msg, args)
		})
	case "settings", "setting", "options", "option":
		r.requireperm(ctx, msg, platform.PermissionManageGuild, func() {
			r.settingsCommand(ctx, msg, args)
		})
	default:
		return false
	}
	return true
}

// requireperm runs fn only when the invoker holds the given permission bit
// in the current channel.
func (r *Router) requireperm(ctx context.Context, msg platform.Message, perm int64, fn func()) {
	perms, err := r.Client.MemberPermissions(ctx, msg.GuildID, msg.ChannelID, msg.Author.ID)
	if err != nil {
		r.Log.Warn().Err(err).Str("user_id", msg.Author.ID).Msg("resolve member permissions")
		return
	}
	if perms&perm == 0 {
		r.reply(ctx, msg, "You don't have permission to do that.")
		return
	}
	fn()
}

func (r *Router) muteCommand(ctx context.Context, msg platform.Message, args []string) {
	userID, ok := parseUserMention(args)
	if !ok {
		r.reply(ctx, msg, "Mention the user to mute, e.g. `mute @user`.")
		return
	}
	user, err := r.Client.ResolveUser(ctx, userID)
	if err != nil {
		r.Log.Warn().Err(err).Str("user_id", userID).Msg("resolve user")
		r.reply(ctx, msg, "Couldn't find that user.")
		return
	}
	if err := r.Dispatcher.Escalate(ctx, msg.GuildID, msg.ChannelID, user, "manual"); err != nil {
		r.Log.Error().Err(err).Str("user_id", userID).Msg("manual mute")
		r.reply(ctx, msg, "Something went wrong applying the mute.")
	}
}

func (r *Router) streakCommand(ctx context.Context, msg platform.Message, args []string) {
	userID, ok := parseUserMention(args)
	if !ok {
		r.reply(ctx, msg, "Mention the user whose streak to set, e.g. `streak @user 3`.")
		return
	}
	if len(args) < 2 {
		r.reply(ctx, msg, "Give the streak value, e.g. `streak @user 3`.")
		return
	}
	val, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		r.reply(ctx, msg, "The streak must be a whole number between 0 and 16.")
		return
	}

	rec, err := r.Dispatcher.SetStreak(ctx, msg.GuildID, userID, uint32(val))
	switch {
	case errors.Is(err, mute.ErrStreakTooHigh):
		r.reply(ctx, msg, fmt.Sprintf("Streaks above %d are not allowed.", mute.MaxManualStreak))
	case errors.Is(err, mute.ErrNoHistory):
		r.reply(ctx, msg, "That user has no mute history to modify.")
	case err != nil:
		r.Log.Error().Err(err).Str("user_id", userID).Msg("set streak")
		r.reply(ctx, msg, "Something went wrong setting the streak.")
	case val == 0:
		r.reply(ctx, msg, fmt.Sprintf("Cleared <@%s>'s mute record.", userID))
	default:
		r.reply(ctx, msg, fmt.Sprintf("Set <@%s>'s streak to %d.", userID, rec.Streak))
	}
}

func (r *Router) settingsCommand(ctx context.Context, msg platform.Message, args []string) {
	if len(args) == 0 {
		r.reply(ctx, msg, settingsText())
		return
	}

	switch strings.ToLower(args[0]) {
	case "prefix":
		r.prefixSetting(ctx, msg, args[1:])
	case "whitelist":
		r.whitelistSetting(ctx, msg, args[1:])
	case "global":
		r.globalSetting(ctx, msg)
	default:
		r.reply(ctx, msg, settingsText())
	}
}

func (r *Router) prefixSetting(ctx context.Context, msg platform.Message, args []string) {
	if len(args) == 0 {
		settings, err := repo.GetOrCreateSettings(ctx, r.DB, msg.GuildID, r.DefaultPrefix)
		if err != nil {
			r.Log.Error().Err(err).Msg("load settings")
			return
		}
		r.reply(ctx, msg, fmt.Sprintf("The current prefix is `%s`.", settings.Prefix))
		return
	}
	if err := repo.UpdatePrefix(ctx, r.DB, msg.GuildID, args[0]); err != nil {
		r.Log.Error().Err(err).Msg("update prefix")
		r.reply(ctx, msg, "Something went wrong changing the prefix.")
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("Prefix changed to `%s`.", args[0]))
}

func (r *Router) whitelistSetting(ctx context.Context, msg platform.Message, args []string) {
	if len(args) == 0 {
		ids, err := repo.ListWhitelisted(ctx, r.DB, msg.GuildID)
		if err != nil {
			r.Log.Error().Err(err).Msg("list whitelist")
			return
		}
		if len(ids) == 0 {
			r.reply(ctx, msg, "No channels are whitelisted yet.")
			return
		}
		mentions := make([]string, 0, len(ids))
		for _, id := range ids {
			mentions = append(mentions, "<#"+id+">")
		}
		r.reply(ctx, msg, "Whitelisted channels: "+strings.Join(mentions, ", "))
		return
	}

	m := channelMentionRE.FindStringSubmatch(args[0])
	if m == nil {
		r.reply(ctx, msg, "Mention the channel to toggle, e.g. `settings whitelist #spam`.")
		return
	}
	channel, err := r.Client.ResolveChannel(ctx, m[1])
	if err != nil || channel.GuildID != msg.GuildID {
		r.reply(ctx, msg, "Couldn't find that channel in this guild.")
		return
	}

	// Toggle membership.
	err = repo.RemoveWhitelisted(ctx, r.DB, msg.GuildID, channel.ID)
	switch {
	case err == nil:
		r.reply(ctx, msg, fmt.Sprintf("Removed **%s** from the whitelist.", channel.Name))
	case errors.Is(err, repo.ErrNotFound):
		if err := repo.AddWhitelisted(ctx, r.DB, msg.GuildID, channel.ID); err != nil {
			r.Log.Error().Err(err).Msg("add whitelist")
			r.reply(ctx, msg, "Something went wrong updating the whitelist.")
			return
		}
		r.reply(ctx, msg, fmt.Sprintf("Added **%s** to the whitelist.", channel.Name))
	default:
		r.Log.Error().Err(err).Msg("remove whitelist")
		r.reply(ctx, msg, "Something went wrong updating the whitelist.")
	}
}

func (r *Router) globalSetting(ctx context.Context, msg platform.Message) {
	settings, err := repo.GetOrCreateSettings(ctx, r.DB, msg.GuildID, r.DefaultPrefix)
	if err != nil {
		r.Log.Error().Err(err).Msg("load settings")
		return
	}
	if err := repo.UpdateGlobal(ctx, r.DB, msg.GuildID, !settings.Global); err != nil {
		r.Log.Error().Err(err).Msg("toggle global")
		r.reply(ctx, msg, "Something went wrong toggling the global dataset.")
		return
	}
	if settings.Global {
		r.reply(ctx, msg, "Global dataset disabled. Fingerprints are now private to this guild.")
	} else {
		r.reply(ctx, msg, "Global dataset enabled. This guild now shares the global corpus.")
	}
}

func (r *Router) reply(ctx context.Context, msg platform.Message, content string) {
	if err := r.Client.SendMessage(ctx, msg.ChannelID, content); err != nil {
		r.Log.Warn().Err(err).Str("channel_id", msg.ChannelID).Msg("send reply")
	}
}

func parseUserMention(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	m := userMentionRE.FindStringSubmatch(args[0])
	if m == nil {
		return "", false
	}
	return m[1], true
}

func helpText(prefix string) string {
	return strings.Join([]string{
		"**Commands**",
		"`" + prefix + "ping` — check the bot is alive",
		"`" + prefix + "mute @user` — force one mute escalation",
		"`" + prefix + "streak @user <0-16>` — set a user's streak",
		"`" + prefix + "settings` — view and change guild settings",
	}, "\n")
}

func settingsText() string {
	return strings.Join([]string{
		"**Settings**",
		"`settings prefix [new]` — view or change the command prefix",
		"`settings whitelist [#channel]` — list or toggle enforced channels",
		"`settings global` — toggle the shared fingerprint corpus",
	}, "\n")
}
