package commander

import (
	"context"
	"time"

	"github.com/colonyops/muster/internal/core/chat"
)

// Attendee is a participant and whether they showed up in voice.
type Attendee struct {
	Participant
	Present  bool      `json:"present"`
	JoinedAt time.Time `json:"joined_at,omitzero"`
}

// GetParticipants returns the roster with display handles. It is resolved
// once and cached; users the platform cannot resolve are left out. Before
// the start the roster is read from the current record.
func (c *Commander) GetParticipants(ctx context.Context) []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getParticipants(ctx)
}

func (c *Commander) getParticipants(ctx context.Context) []Participant {
	if c.resolved {
		return c.participants
	}

	roster := c.roster
	if roster == nil {
		roster = c.rec.Participants()
	}

	out := make([]Participant, 0, len(roster))
	for _, id := range roster {
		handle, err := c.deps.Platform.ResolveUser(ctx, id)
		if err != nil {
			c.log.Debug().Err(err).Str("user_id", id).Msg("skipping unresolved participant")
			continue
		}
		out = append(out, Participant{UserID: id, Handle: handle})
	}

	c.participants = out
	c.resolved = true
	return out
}

// UpdateAttendance records which participants are connected to one of the
// operation's voice channels and refreshes the status message. It only runs
// while the operation is started.
func (c *Commander) UpdateAttendance(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStarted {
		return false
	}

	now := c.now()
	inRoster := make(map[string]bool, len(c.roster))
	for _, id := range c.roster {
		inRoster[id] = true
	}

	for _, ch := range c.voice {
		members, err := c.deps.Platform.VoiceMembers(ctx, ch.ID)
		if err != nil {
			c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Str("channel", ch.Name).Msg("list voice members")
			continue
		}
		for _, id := range members {
			if !inRoster[id] {
				continue
			}
			if _, seen := c.attendance[id]; !seen {
				c.attendance[id] = now
			}
		}
	}

	c.renderStatus(ctx)
	return true
}

// Attendance returns every resolved participant and whether they joined.
func (c *Commander) Attendance(ctx context.Context) []Attendee {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attendees(ctx)
}

func (c *Commander) attendees(ctx context.Context) []Attendee {
	participants := c.getParticipants(ctx)
	out := make([]Attendee, 0, len(participants))
	for _, p := range participants {
		joined, ok := c.attendance[p.UserID]
		out = append(out, Attendee{Participant: p, Present: ok, JoinedAt: joined})
	}
	return out
}

// renderStatus edits the live status message, posting it again when it is
// missing.
func (c *Commander) renderStatus(ctx context.Context) {
	if c.control.ID == "" {
		return
	}

	text := statusText(c.rec, c.attendees(ctx), c.now().Sub(c.startedAt))

	if !c.statusRef.IsZero() {
		err := c.deps.Platform.EditMessage(ctx, c.statusRef, text)
		if err == nil {
			return
		}
		if !chat.IsNotFound(err) {
			c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("edit status message")
			return
		}
	}

	ref, err := c.deps.Platform.SendMessage(ctx, c.control.ID, text)
	if err != nil {
		c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("post status message")
		return
	}
	c.statusRef = ref
}
