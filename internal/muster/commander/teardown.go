package commander

import (
	"context"

	"github.com/colonyops/muster/internal/core/chat"
)

// RemoveChannels deletes the operation's channels and category. Members
// still in voice are moved to the fallback voice channel first. Game-event
// subscriptions are released last.
func (c *Commander) RemoveChannels(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeChannels(ctx)
}

func (c *Commander) removeChannels(ctx context.Context) {
	p := c.deps.Platform
	defer c.releaseFeed(ctx)

	category := c.category
	if category.ID == "" {
		found, err := p.FindChannel(ctx, "", c.categoryName(), chat.KindCategory)
		if err != nil {
			if !chat.IsNotFound(err) {
				c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("find category")
			}
			return
		}
		category = found
	}

	children, err := p.ListChannels(ctx, category.ID)
	if err != nil {
		c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("list channels")
	}

	for _, ch := range children {
		if ch.Kind == chat.KindText {
			c.deleteChannel(ctx, ch)
		}
	}

	fallback := c.fallbackChannel(ctx)
	for _, ch := range children {
		if ch.Kind != chat.KindVoice {
			continue
		}
		if fallback.ID != "" {
			c.evacuate(ctx, ch, fallback)
		}
		c.deleteChannel(ctx, ch)
	}

	c.deleteChannel(ctx, category)

	c.category = chat.Channel{}
	c.control = chat.Channel{}
	c.notifications = chat.Channel{}
	c.standby = chat.Channel{}
	c.voice = nil
	c.infoRef = chat.MessageRef{}
	c.alertRef = chat.MessageRef{}
	c.statusRef = chat.MessageRef{}
}

// evacuate moves everyone connected to from into to.
func (c *Commander) evacuate(ctx context.Context, from, to chat.Channel) {
	members, err := c.deps.Platform.VoiceMembers(ctx, from.ID)
	if err != nil {
		if !chat.IsNotFound(err) {
			c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Str("channel", from.Name).Msg("list voice members")
		}
		return
	}
	for _, userID := range members {
		if err := c.deps.Platform.MoveUserToChannel(ctx, userID, to.ID); err != nil {
			c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Str("user_id", userID).Msg("move member to fallback channel")
		}
	}
}

func (c *Commander) fallbackChannel(ctx context.Context) chat.Channel {
	name := c.deps.Config.FallbackVoiceChannel
	if name == "" {
		return chat.Channel{}
	}
	ch, err := c.deps.Platform.FindChannel(ctx, "", name, chat.KindVoice)
	if err != nil {
		c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Str("channel", name).Msg("find fallback voice channel")
		return chat.Channel{}
	}
	return ch
}

func (c *Commander) deleteChannel(ctx context.Context, ch chat.Channel) {
	if err := c.deps.Platform.DeleteChannel(ctx, ch.ID); err != nil && !chat.IsNotFound(err) {
		c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Str("channel", ch.Name).Msg("delete channel")
	}
}

func (c *Commander) releaseFeed(ctx context.Context) {
	if !c.subscribed || c.deps.Feed == nil {
		return
	}
	if err := c.deps.Feed.Unsubscribe(ctx, c.rec.ID); err != nil {
		c.log.Warn().Err(err).Msg("release game-event subscription")
		return
	}
	c.subscribed = false
}
