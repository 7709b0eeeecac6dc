// Package platform defines the chat-platform boundary. The core never
// imports platform SDKs; Discord and Telegram adapters live out of tree
// behind the Adapter interface, and the in-tree console adapter backs the
// interactive CLI and the admin API.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrForbidden reports a permission failure from the platform, e.g. the bot
// cannot post in a channel. Callers treat it as non-retryable.
var ErrForbidden = errors.New("forbidden by platform")

// MessageRef identifies one platform message, enough to react to it or
// thread a reply under it.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// UserInfo identifies a message author.
type UserInfo struct {
	ID     string
	Name   string
	Handle string
}

// Event is one inbound message delivered by an adapter.
type Event struct {
	Ref     MessageRef
	GuildID string
	Sender  UserInfo
	Text    string
	Time    time.Time

	// IsDM marks direct-message scope; the identity key becomes the user.
	IsDM bool

	// IsReply marks the event as a threaded reply to another message.
	IsReply bool

	// HasImages / HasAudio signal attachments without fetching them.
	HasImages bool
	HasAudio  bool
}

// ReplyInfo is the resolved context of a reply event.
type ReplyInfo struct {
	Author   UserInfo
	Content  string
	FromSelf bool
}

// SendOptions tunes one outgoing message.
type SendOptions struct {
	// Delay holds typing-simulation time before the message goes out.
	Delay time.Duration

	// AsReply threads the message under ReplyTo when the platform
	// supports it.
	AsReply bool
	ReplyTo MessageRef
}

// Adapter is the capability set a chat platform must expose to the runtime.
type Adapter interface {
	// Name identifies the platform, e.g. "discord"; it doubles as the
	// persistence hash prefix.
	Name() string

	// Identity derives the conversation key for an event.
	Identity(ev *Event) string

	// Typing signals a typing indicator in a channel. Best effort.
	Typing(ctx context.Context, channelID string) error

	// Send delivers text to a channel, honoring opts.
	Send(ctx context.Context, channelID, text string, opts SendOptions) error

	// React adds an emoji reaction to a message.
	React(ctx context.Context, ref MessageRef, emoji string) error

	// FetchAttachments downloads the event's image and audio payloads.
	FetchAttachments(ctx context.Context, ev *Event) (images [][]byte, audio [][]byte, err error)

	// ReplyContext resolves the message an event replies to, or nil when
	// the event is not a reply.
	ReplyContext(ctx context.Context, ev *Event) (*ReplyInfo, error)

	// IsSelf reports whether the event was authored by the bot itself.
	IsSelf(ev *Event) bool
}

// IdentityFor derives the canonical conversation key from an event: guild
// scope when present, the sender for DMs, the channel otherwise. Raw
// platform ids never become filenames directly; the bot layer hashes them.
func IdentityFor(ev *Event) string {
	switch {
	case ev.GuildID != "":
		return "guild#" + ev.GuildID
	case ev.IsDM:
		return "user#" + ev.Sender.ID
	default:
		return "channel#" + ev.Ref.ChannelID
	}
}
