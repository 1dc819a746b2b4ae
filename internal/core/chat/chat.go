// Package chat defines the collaborator muster uses to talk to a chat
// platform. Implementations render and transmit; muster only hands them
// view models and decisions.
package chat

import (
	"context"
	"time"
)

// ChannelKind distinguishes text channels, voice channels and categories.
type ChannelKind int

const (
	KindText ChannelKind = iota
	KindVoice
	KindCategory
)

func (k ChannelKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVoice:
		return "voice"
	case KindCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Channel is a channel or category on the platform. Top-level channels and
// categories have an empty ParentID.
type Channel struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Kind     ChannelKind `json:"kind"`
	ParentID string      `json:"parent_id,omitempty"`
}

// MessageRef locates a sent message.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// IsZero reports whether the ref points at nothing.
func (r MessageRef) IsZero() bool { return r.MessageID == "" }

// Platform is the chat-platform collaborator.
//
// Lookups of missing messages, channels or users return an error matching
// ErrNotFound. Missing permissions match ErrPermission and rate limits or
// outages match ErrTransient.
type Platform interface {
	SendAnnouncement(ctx context.Context, channelID string, a Announcement) (MessageRef, error)
	EditAnnouncement(ctx context.Context, ref MessageRef, a Announcement) error

	SendMessage(ctx context.Context, channelID, text string) (MessageRef, error)
	EditMessage(ctx context.Context, ref MessageRef, text string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	// CountBotMessages returns how many messages in the channel were sent by
	// the bot itself.
	CountBotMessages(ctx context.Context, channelID string) (int, error)

	FindChannel(ctx context.Context, parentID, name string, kind ChannelKind) (Channel, error)
	CreateChannel(ctx context.Context, parentID, name string, kind ChannelKind) (Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	ListChannels(ctx context.Context, parentID string) ([]Channel, error)

	// ResolveUser returns the display handle for a user id.
	ResolveUser(ctx context.Context, userID string) (string, error)
	VoiceMembers(ctx context.Context, channelID string) ([]string, error)
	MoveUserToChannel(ctx context.Context, userID, channelID string) error
}

// EnsureChannel finds the named channel under parentID, creating it when it
// does not exist.
func EnsureChannel(ctx context.Context, p Platform, parentID, name string, kind ChannelKind) (Channel, error) {
	ch, err := p.FindChannel(ctx, parentID, name, kind)
	if err == nil {
		return ch, nil
	}
	if !IsNotFound(err) {
		return Channel{}, err
	}
	return p.CreateChannel(ctx, parentID, name, kind)
}

// EventFeed subscribes to external game events for a running operation.
type EventFeed interface {
	Subscribe(ctx context.Context, operationID string, since time.Time) error
	Unsubscribe(ctx context.Context, operationID string) error
}
