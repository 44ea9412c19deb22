// Package discord adapts the platform.Client boundary onto a discordgo
// session. All outbound calls pass through a shared token-bucket limiter so
// bursts of sweep side effects stay inside the platform's goodwill.
package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-stunlock-bot/internal/platform"
)

// Client implements platform.Client over a discordgo session.
type Client struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

// NewClient wraps session with an outbound limiter of rps tokens/second and
// the given burst.
func NewClient(session *discordgo.Session, rps float64, burst int) *Client {
	return &Client{
		session: session,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DeleteMessage removes a message from a channel.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// SendMessage posts content to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

// SendDirectMessage delivers content to a user's DM channel.
func (c *Client) SendDirectMessage(ctx context.Context, userID, content string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = c.session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx))
	return err
}

// EditChannelPermissions sets (or clears) a member permission overwrite.
func (c *Client) EditChannelPermissions(ctx context.Context, channelID, userID string, allow, deny int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if allow == 0 && deny == 0 {
		err := c.session.ChannelPermissionDelete(channelID, userID, discordgo.WithContext(ctx))
		return err
	}
	return c.session.ChannelPermissionSet(channelID, userID,
		discordgo.PermissionOverwriteTypeMember, allow, deny, discordgo.WithContext(ctx))
}

// ResolveUser fetches user identity by ID.
func (c *Client) ResolveUser(ctx context.Context, userID string) (platform.User, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return platform.User{}, err
	}
	u, err := c.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.User{}, err
	}
	return platform.User{ID: u.ID, Username: u.Username, Bot: u.Bot}, nil
}

// ResolveChannel fetches channel identity by ID.
func (c *Client) ResolveChannel(ctx context.Context, channelID string) (platform.Channel, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return platform.Channel{}, err
	}
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Channel{}, err
	}
	return platform.Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name}, nil
}

// MemberPermissions returns the member's effective permission bits in a
// channel.
func (c *Client) MemberPermissions(ctx context.Context, guildID, channelID, userID string) (int64, error) {
	return c.session.UserChannelPermissions(userID, channelID)
}
