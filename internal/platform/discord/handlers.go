package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-stunlock-bot/internal/commands"
	"github.com/tbourn/go-stunlock-bot/internal/dispatch"
	"github.com/tbourn/go-stunlock-bot/internal/platform"
)

// Attach registers gateway event handlers: message create/update feed the
// command router and the moderation dispatcher; ready is logged.
//
// Commands do not suppress moderation: a command invocation is still a
// message and still goes through duplicate detection.
func Attach(session *discordgo.Session, router *commands.Router, d *dispatch.Dispatcher, log zerolog.Logger) {
	lg := log.With().Str("component", "gateway").Logger()

	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		lg.Info().Str("user", r.User.Username).Msg("connected")
	})

	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		lg.Info().Msg("resumed")
	})

	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		msg, ok := toPlatformMessage(m.Message)
		if !ok {
			return
		}
		ctx := context.Background()
		router.Handle(ctx, msg)
		d.HandleMessage(ctx, msg)
	})

	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
		msg, ok := toPlatformMessage(m.Message)
		if !ok {
			return
		}
		var old *platform.Message
		if m.BeforeUpdate != nil {
			if o, ok := toPlatformMessage(m.BeforeUpdate); ok {
				old = &o
			}
		}
		d.HandleMessageEdit(context.Background(), old, msg)
	})
}

// toPlatformMessage normalizes a gateway message. Events without an author
// or outside a guild (DMs) are dropped.
func toPlatformMessage(m *discordgo.Message) (platform.Message, bool) {
	if m == nil || m.Author == nil || m.GuildID == "" {
		return platform.Message{}, false
	}
	return platform.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Author: platform.User{
			ID:       m.Author.ID,
			Username: m.Author.Username,
			Bot:      m.Author.Bot,
		},
	}, true
}
