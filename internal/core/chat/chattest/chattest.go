// Package chattest provides an in-memory chat.Platform for tests.
package chattest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/colonyops/muster/internal/core/chat"
	"github.com/colonyops/muster/pkg/randid"
)

// Message is a message held by the fake.
type Message struct {
	Ref          chat.MessageRef
	Text         string
	Announcement *chat.Announcement
	Bot          bool
}

// Platform is a thread-safe in-memory chat.Platform. Methods named in Fail
// return the configured error until Clear is called.
type Platform struct {
	mu       sync.Mutex
	channels map[string]chat.Channel
	messages map[string][]*Message
	users    map[string]string
	voice    map[string][]string
	fail     map[string]error
	calls    []string
}

var _ chat.Platform = (*Platform)(nil)

// New creates an empty fake platform.
func New() *Platform {
	return &Platform{
		channels: make(map[string]chat.Channel),
		messages: make(map[string][]*Message),
		users:    make(map[string]string),
		voice:    make(map[string][]string),
		fail:     make(map[string]error),
	}
}

// Fail makes method return err on every call.
func (p *Platform) Fail(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[method] = err
}

// Clear removes all injected failures.
func (p *Platform) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = make(map[string]error)
}

// AddUser registers a resolvable user.
func (p *Platform) AddUser(id, handle string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[id] = handle
}

// Connect places a user in a voice channel.
func (p *Platform) Connect(userID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnect(userID)
	p.voice[channelID] = append(p.voice[channelID], userID)
}

// PostForeign adds a message not authored by the bot.
func (p *Platform) PostForeign(channelID, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[channelID] = append(p.messages[channelID], &Message{
		Ref:  chat.MessageRef{ChannelID: channelID, MessageID: randid.Generate(10)},
		Text: text,
	})
}

// AddChannel creates a channel without going through CreateChannel.
func (p *Platform) AddChannel(parentID, name string, kind chat.ChannelKind) chat.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addChannel(parentID, name, kind)
}

// Calls returns the method names invoked so far.
func (p *Platform) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// CountCalls returns how often method was invoked.
func (p *Platform) CountCalls(method string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

// Messages returns the messages in a channel.
func (p *Platform) Messages(channelID string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, 0, len(p.messages[channelID]))
	for _, m := range p.messages[channelID] {
		out = append(out, *m)
	}
	return out
}

// Message looks up a message by ref.
func (p *Platform) Message(ref chat.MessageRef) (Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m := p.find(ref); m != nil {
		return *m, true
	}
	return Message{}, false
}

// Channels returns every channel.
func (p *Platform) Channels() []chat.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]chat.Channel, 0, len(p.channels))
	for _, ch := range p.channels {
		out = append(out, ch)
	}
	return out
}

// ChannelByName returns the first channel with the given name.
func (p *Platform) ChannelByName(name string) (chat.Channel, bool) {
	for _, ch := range p.Channels() {
		if ch.Name == name {
			return ch, true
		}
	}
	return chat.Channel{}, false
}

// Members returns the users connected to a voice channel.
func (p *Platform) Members(channelID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.voice[channelID])
}

func (p *Platform) enter(method string) error {
	p.mu.Lock()
	p.calls = append(p.calls, method)
	return p.fail[method]
}

func (p *Platform) SendAnnouncement(_ context.Context, channelID string, a chat.Announcement) (chat.MessageRef, error) {
	if err := p.enter("SendAnnouncement"); err != nil {
		p.mu.Unlock()
		return chat.MessageRef{}, err
	}
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return chat.MessageRef{}, fmt.Errorf("channel %s: %w", channelID, chat.ErrNotFound)
	}
	m := p.send(channelID, a.Title)
	m.Announcement = &a
	return m.Ref, nil
}

func (p *Platform) EditAnnouncement(_ context.Context, ref chat.MessageRef, a chat.Announcement) error {
	if err := p.enter("EditAnnouncement"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	m := p.find(ref)
	if m == nil {
		return fmt.Errorf("message %s: %w", ref.MessageID, chat.ErrNotFound)
	}
	m.Announcement = &a
	m.Text = a.Title
	return nil
}

func (p *Platform) SendMessage(_ context.Context, channelID, text string) (chat.MessageRef, error) {
	if err := p.enter("SendMessage"); err != nil {
		p.mu.Unlock()
		return chat.MessageRef{}, err
	}
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return chat.MessageRef{}, fmt.Errorf("channel %s: %w", channelID, chat.ErrNotFound)
	}
	return p.send(channelID, text).Ref, nil
}

func (p *Platform) EditMessage(_ context.Context, ref chat.MessageRef, text string) error {
	if err := p.enter("EditMessage"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	m := p.find(ref)
	if m == nil {
		return fmt.Errorf("message %s: %w", ref.MessageID, chat.ErrNotFound)
	}
	m.Text = text
	return nil
}

func (p *Platform) DeleteMessage(_ context.Context, ref chat.MessageRef) error {
	if err := p.enter("DeleteMessage"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	msgs := p.messages[ref.ChannelID]
	for i, m := range msgs {
		if m.Ref.MessageID == ref.MessageID {
			p.messages[ref.ChannelID] = slices.Delete(msgs, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("message %s: %w", ref.MessageID, chat.ErrNotFound)
}

func (p *Platform) CountBotMessages(_ context.Context, channelID string) (int, error) {
	if err := p.enter("CountBotMessages"); err != nil {
		p.mu.Unlock()
		return 0, err
	}
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.messages[channelID] {
		if m.Bot {
			n++
		}
	}
	return n, nil
}

func (p *Platform) FindChannel(_ context.Context, parentID, name string, kind chat.ChannelKind) (chat.Channel, error) {
	if err := p.enter("FindChannel"); err != nil {
		p.mu.Unlock()
		return chat.Channel{}, err
	}
	defer p.mu.Unlock()
	for _, ch := range p.channels {
		if ch.ParentID == parentID && ch.Name == name && ch.Kind == kind {
			return ch, nil
		}
	}
	return chat.Channel{}, fmt.Errorf("channel %s: %w", name, chat.ErrNotFound)
}

func (p *Platform) CreateChannel(_ context.Context, parentID, name string, kind chat.ChannelKind) (chat.Channel, error) {
	if err := p.enter("CreateChannel"); err != nil {
		p.mu.Unlock()
		return chat.Channel{}, err
	}
	defer p.mu.Unlock()
	return p.addChannel(parentID, name, kind), nil
}

func (p *Platform) DeleteChannel(_ context.Context, channelID string) error {
	if err := p.enter("DeleteChannel"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return fmt.Errorf("channel %s: %w", channelID, chat.ErrNotFound)
	}
	delete(p.channels, channelID)
	delete(p.messages, channelID)
	delete(p.voice, channelID)
	return nil
}

func (p *Platform) ListChannels(_ context.Context, parentID string) ([]chat.Channel, error) {
	if err := p.enter("ListChannels"); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	defer p.mu.Unlock()
	var out []chat.Channel
	for _, ch := range p.channels {
		if ch.ParentID == parentID {
			out = append(out, ch)
		}
	}
	slices.SortFunc(out, func(a, b chat.Channel) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

func (p *Platform) ResolveUser(_ context.Context, userID string) (string, error) {
	if err := p.enter("ResolveUser"); err != nil {
		p.mu.Unlock()
		return "", err
	}
	defer p.mu.Unlock()
	handle, ok := p.users[userID]
	if !ok {
		return "", fmt.Errorf("user %s: %w", userID, chat.ErrNotFound)
	}
	return handle, nil
}

func (p *Platform) VoiceMembers(_ context.Context, channelID string) ([]string, error) {
	if err := p.enter("VoiceMembers"); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	defer p.mu.Unlock()
	return slices.Clone(p.voice[channelID]), nil
}

func (p *Platform) MoveUserToChannel(_ context.Context, userID, channelID string) error {
	if err := p.enter("MoveUserToChannel"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return fmt.Errorf("channel %s: %w", channelID, chat.ErrNotFound)
	}
	p.disconnect(userID)
	p.voice[channelID] = append(p.voice[channelID], userID)
	return nil
}

func (p *Platform) addChannel(parentID, name string, kind chat.ChannelKind) chat.Channel {
	ch := chat.Channel{ID: randid.Prefixed("c", 8), Name: name, Kind: kind, ParentID: parentID}
	p.channels[ch.ID] = ch
	return ch
}

func (p *Platform) send(channelID, text string) *Message {
	m := &Message{
		Ref:  chat.MessageRef{ChannelID: channelID, MessageID: randid.Prefixed("m", 10)},
		Text: text,
		Bot:  true,
	}
	p.messages[channelID] = append(p.messages[channelID], m)
	return m
}

func (p *Platform) find(ref chat.MessageRef) *Message {
	for _, m := range p.messages[ref.ChannelID] {
		if m.Ref.MessageID == ref.MessageID {
			return m
		}
	}
	return nil
}

func (p *Platform) disconnect(userID string) {
	for id, members := range p.voice {
		if i := slices.Index(members, userID); i >= 0 {
			p.voice[id] = slices.Delete(members, i, i+1)
		}
	}
}

var _ chat.EventFeed = (*Feed)(nil)

// Feed is an in-memory chat.EventFeed.
type Feed struct {
	mu     sync.Mutex
	active map[string]bool
	Err    error
}

// NewFeed creates an empty feed.
func NewFeed() *Feed { return &Feed{active: make(map[string]bool)} }

func (f *Feed) Subscribe(_ context.Context, operationID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.active[operationID] = true
	return nil
}

func (f *Feed) Unsubscribe(_ context.Context, operationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, operationID)
	return nil
}

// Active reports whether operationID holds a subscription.
func (f *Feed) Active(operationID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[operationID]
}
