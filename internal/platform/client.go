// Package platform defines the boundary to the chat platform. The
// moderation layers talk to a Client interface so the gateway glue stays a
// thin adapter (see platform/discord) and tests can substitute a fake.
//
// Every method is a fallible remote call. Callers log failures and abandon
// the single attempt; the next sweep tick or message naturally retries
// where that makes sense.
package platform

import "context"

// Permission bits, matching the platform's wire values.
const (
	PermissionAddReactions   int64 = 1 << 6
	PermissionManageGuild    int64 = 1 << 5
	PermissionSendMessages   int64 = 1 << 11
	PermissionManageMessages int64 = 1 << 13
)

// MuteDeny is the permission set denied to a muted user in every
// whitelisted channel.
const MuteDeny = PermissionSendMessages | PermissionAddReactions

// User is the subset of platform user identity the bot needs.
type User struct {
	ID       string
	Username string
	Bot      bool
}

// Channel is the subset of platform channel identity the bot needs.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// Message is a normalized inbound message event.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	Content   string
	Author    User
}

// Client is the outbound surface to the chat platform.
type Client interface {
	// DeleteMessage removes a message from a channel.
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// SendMessage posts content to a channel.
	SendMessage(ctx context.Context, channelID, content string) error

	// SendDirectMessage delivers content to a user's DM channel.
	SendDirectMessage(ctx context.Context, userID, content string) error

	// EditChannelPermissions sets a member permission overwrite on a
	// channel. allow == deny == 0 clears the overwrite.
	EditChannelPermissions(ctx context.Context, channelID, userID string, allow, deny int64) error

	// ResolveUser fetches user identity by ID.
	ResolveUser(ctx context.Context, userID string) (User, error)

	// ResolveChannel fetches channel identity by ID.
	ResolveChannel(ctx context.Context, channelID string) (Channel, error)

	// MemberPermissions returns the effective permission bits of a member
	// in a channel, used to gate moderator commands.
	MemberPermissions(ctx context.Context, guildID, channelID, userID string) (int64, error)
}
