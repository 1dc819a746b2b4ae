// Package console implements chat.Platform on top of the local KV store.
// Channels, messages, users and voice membership live in SQLite so that a
// serving process and CLI invocations see the same state; every message the
// bot sends is also printed to a writer.
package console

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/muster/internal/core/chat"
	corekv "github.com/colonyops/muster/internal/core/kv"
	"github.com/colonyops/muster/internal/data/stores"
	"github.com/colonyops/muster/pkg/randid"
)

// Message is a message held by the console platform.
type Message struct {
	Ref          chat.MessageRef    `json:"ref"`
	Text         string             `json:"text,omitempty"`
	Announcement *chat.Announcement `json:"announcement,omitempty"`
	Bot          bool               `json:"bot"`
	SentAt       time.Time          `json:"sent_at"`
	EditedAt     time.Time          `json:"edited_at,omitzero"`
}

// Platform is the console chat.Platform.
type Platform struct {
	channels *corekv.TypedKV[chat.Channel]
	messages *corekv.TypedKV[Message]
	users    *corekv.TypedKV[string]
	voice    *corekv.TypedKV[[]string]

	out    io.Writer
	width  int
	logger zerolog.Logger
	now    func() time.Time

	mu sync.Mutex
}

var _ chat.Platform = (*Platform)(nil)

// Option configures a Platform.
type Option func(*Platform)

// WithWidth fixes the render width instead of reading it from the terminal.
func WithWidth(width int) Option {
	return func(p *Platform) { p.width = width }
}

// New creates a console platform on store that prints to out. A nil out
// discards output.
func New(store corekv.KV, out io.Writer, logger zerolog.Logger, opts ...Option) *Platform {
	if out == nil {
		out = io.Discard
	}
	p := &Platform{
		channels: corekv.Scoped[chat.Channel](store, "console-channels"),
		messages: corekv.Scoped[Message](store, "console-messages"),
		users:    corekv.Scoped[string](store, "console-users"),
		voice:    corekv.Scoped[[]string](store, "console-voice"),
		out:      out,
		logger:   logger.With().Str("component", "console").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func messageKey(ref chat.MessageRef) string {
	return ref.ChannelID + "/" + ref.MessageID
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, chat.ErrNotFound)
}

func (p *Platform) channel(ctx context.Context, id string) (chat.Channel, error) {
	ch, err := p.channels.Get(ctx, id)
	if err != nil {
		if stores.IsNotFoundError(err) {
			return chat.Channel{}, notFound("channel", id)
		}
		return chat.Channel{}, err
	}
	return ch, nil
}

func (p *Platform) message(ctx context.Context, ref chat.MessageRef) (Message, error) {
	m, err := p.messages.Get(ctx, messageKey(ref))
	if err != nil {
		if stores.IsNotFoundError(err) {
			return Message{}, notFound("message", ref.MessageID)
		}
		return Message{}, err
	}
	return m, nil
}

func (p *Platform) send(ctx context.Context, channelID string, m Message) (Message, error) {
	ch, err := p.channel(ctx, channelID)
	if err != nil {
		return Message{}, err
	}
	if ch.Kind != chat.KindText {
		return Message{}, fmt.Errorf("send to %s channel %s: %w", ch.Kind, ch.Name, chat.ErrPermission)
	}

	m.Ref = chat.MessageRef{ChannelID: channelID, MessageID: randid.Prefixed("m", 10)}
	m.SentAt = p.now()
	if err := p.messages.Set(ctx, messageKey(m.Ref), m); err != nil {
		return Message{}, err
	}

	p.print(ch, m, false)
	return m, nil
}

func (p *Platform) SendAnnouncement(ctx context.Context, channelID string, a chat.Announcement) (chat.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.send(ctx, channelID, Message{Text: a.Title, Announcement: &a, Bot: true})
	if err != nil {
		return chat.MessageRef{}, err
	}
	return m.Ref, nil
}

func (p *Platform) EditAnnouncement(ctx context.Context, ref chat.MessageRef, a chat.Announcement) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.message(ctx, ref)
	if err != nil {
		return err
	}
	m.Announcement = &a
	m.Text = a.Title
	return p.edit(ctx, m)
}

func (p *Platform) SendMessage(ctx context.Context, channelID, text string) (chat.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.send(ctx, channelID, Message{Text: text, Bot: true})
	if err != nil {
		return chat.MessageRef{}, err
	}
	return m.Ref, nil
}

func (p *Platform) EditMessage(ctx context.Context, ref chat.MessageRef, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.message(ctx, ref)
	if err != nil {
		return err
	}
	m.Text = text
	return p.edit(ctx, m)
}

func (p *Platform) edit(ctx context.Context, m Message) error {
	if !m.Bot {
		return fmt.Errorf("edit message %s: %w", m.Ref.MessageID, chat.ErrPermission)
	}
	m.EditedAt = p.now()
	if err := p.messages.Set(ctx, messageKey(m.Ref), m); err != nil {
		return err
	}
	if ch, err := p.channel(ctx, m.Ref.ChannelID); err == nil {
		p.print(ch, m, true)
	}
	return nil
}

func (p *Platform) DeleteMessage(ctx context.Context, ref chat.MessageRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.message(ctx, ref); err != nil {
		return err
	}
	return p.messages.Delete(ctx, messageKey(ref))
}

func (p *Platform) CountBotMessages(ctx context.Context, channelID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.channel(ctx, channelID); err != nil {
		return 0, err
	}
	msgs, err := p.channelMessages(ctx, channelID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range msgs {
		if m.Bot {
			n++
		}
	}
	return n, nil
}

// Messages returns the messages of a channel, oldest first.
func (p *Platform) Messages(ctx context.Context, channelID string) ([]Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.channel(ctx, channelID); err != nil {
		return nil, err
	}
	return p.channelMessages(ctx, channelID)
}

func (p *Platform) channelMessages(ctx context.Context, channelID string) ([]Message, error) {
	keys, err := p.messages.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var out []Message
	prefix := channelID + "/"
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		m, err := p.messages.Get(ctx, k)
		if err != nil {
			if stores.IsNotFoundError(err) {
				continue
			}
			return nil, err
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Message) int { return a.SentAt.Compare(b.SentAt) })
	return out, nil
}

// Post adds a message written by userID rather than the bot.
func (p *Platform) Post(ctx context.Context, channelID, userID, text string) (chat.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	handle, err := p.resolve(ctx, userID)
	if err != nil {
		return chat.MessageRef{}, err
	}
	m, err := p.send(ctx, channelID, Message{Text: handle + ": " + text})
	if err != nil {
		return chat.MessageRef{}, err
	}
	return m.Ref, nil
}

func (p *Platform) FindChannel(ctx context.Context, parentID, name string, kind chat.ChannelKind) (chat.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all, err := p.channels.All(ctx)
	if err != nil {
		return chat.Channel{}, err
	}
	for _, ch := range all {
		if ch.ParentID == parentID && ch.Name == name && ch.Kind == kind {
			return ch, nil
		}
	}
	return chat.Channel{}, notFound("channel", name)
}

func (p *Platform) CreateChannel(ctx context.Context, parentID, name string, kind chat.ChannelKind) (chat.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		return chat.Channel{}, fmt.Errorf("create channel: name is required")
	}
	if parentID != "" {
		parent, err := p.channel(ctx, parentID)
		if err != nil {
			return chat.Channel{}, err
		}
		if parent.Kind != chat.KindCategory {
			return chat.Channel{}, fmt.Errorf("create channel in %s %s: %w", parent.Kind, parent.Name, chat.ErrPermission)
		}
	}

	ch := chat.Channel{ID: randid.Prefixed("c", 8), Name: name, Kind: kind, ParentID: parentID}
	if err := p.channels.Set(ctx, ch.ID, ch); err != nil {
		return chat.Channel{}, err
	}
	p.logger.Debug().Str("channel", name).Str("kind", kind.String()).Msg("channel created")
	return ch, nil
}

// DeleteChannel removes a channel with its messages and voice members.
// Children of a deleted category move to the top level.
func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(ctx, channelID)
	if err != nil {
		return err
	}

	msgs, err := p.channelMessages(ctx, channelID)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := p.messages.Delete(ctx, messageKey(m.Ref)); err != nil {
			return err
		}
	}

	if ch.Kind == chat.KindCategory {
		children, err := p.children(ctx, channelID)
		if err != nil {
			return err
		}
		for _, child := range children {
			child.ParentID = ""
			if err := p.channels.Set(ctx, child.ID, child); err != nil {
				return err
			}
		}
	}

	if err := p.voice.Delete(ctx, channelID); err != nil {
		return err
	}
	return p.channels.Delete(ctx, channelID)
}

func (p *Platform) ListChannels(ctx context.Context, parentID string) ([]chat.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.children(ctx, parentID)
}

func (p *Platform) children(ctx context.Context, parentID string) ([]chat.Channel, error) {
	all, err := p.channels.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []chat.Channel
	for _, ch := range all {
		if ch.ParentID == parentID {
			out = append(out, ch)
		}
	}
	slices.SortFunc(out, func(a, b chat.Channel) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// AddUser registers a user and their display handle.
func (p *Platform) AddUser(ctx context.Context, userID, handle string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(handle) == "" {
		return fmt.Errorf("add user: id and handle are required")
	}
	return p.users.Set(ctx, userID, handle)
}

// Users returns every registered user keyed by id.
func (p *Platform) Users(ctx context.Context) (map[string]string, error) {
	return p.users.All(ctx)
}

func (p *Platform) ResolveUser(ctx context.Context, userID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolve(ctx, userID)
}

func (p *Platform) resolve(ctx context.Context, userID string) (string, error) {
	handle, err := p.users.Get(ctx, userID)
	if err != nil {
		if stores.IsNotFoundError(err) {
			return "", notFound("user", userID)
		}
		return "", err
	}
	return handle, nil
}

func (p *Platform) VoiceMembers(ctx context.Context, channelID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.channel(ctx, channelID); err != nil {
		return nil, err
	}
	return p.members(ctx, channelID)
}

func (p *Platform) members(ctx context.Context, channelID string) ([]string, error) {
	members, err := p.voice.Get(ctx, channelID)
	if err != nil && !stores.IsNotFoundError(err) {
		return nil, err
	}
	return members, nil
}

// MoveUserToChannel connects userID to a voice channel, leaving whatever
// channel they were in. Users that are not registered cannot connect.
func (p *Platform) MoveUserToChannel(ctx context.Context, userID, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(ctx, channelID)
	if err != nil {
		return err
	}
	if ch.Kind != chat.KindVoice {
		return fmt.Errorf("move %s into %s channel %s: %w", userID, ch.Kind, ch.Name, chat.ErrPermission)
	}
	if _, err := p.resolve(ctx, userID); err != nil {
		return err
	}

	if err := p.disconnect(ctx, userID); err != nil {
		return err
	}
	members, err := p.members(ctx, channelID)
	if err != nil {
		return err
	}
	return p.voice.Set(ctx, channelID, append(members, userID))
}

// Disconnect removes userID from every voice channel.
func (p *Platform) Disconnect(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnect(ctx, userID)
}

func (p *Platform) disconnect(ctx context.Context, userID string) error {
	all, err := p.voice.All(ctx)
	if err != nil {
		return err
	}
	for channelID, members := range all {
		i := slices.Index(members, userID)
		if i < 0 {
			continue
		}
		if err := p.voice.Set(ctx, channelID, slices.Delete(members, i, i+1)); err != nil {
			return err
		}
	}
	return nil
}
