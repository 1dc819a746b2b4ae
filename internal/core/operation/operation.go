// Package operation defines the Operation record, its roster model and the
// persistence contract shared by the manager and the store.
package operation

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a name to a file-safe slug.
// "Sober Dogs Raid" -> "sober-dogs-raid"
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// FileNameFor derives the live file name for an operation name and start date.
// The date is rendered in UTC so the same instant always maps to the same name.
func FileNameFor(name string, date time.Time) string {
	return Slugify(name) + "-" + date.UTC().Format("20060102T1504")
}

// Identity tells templates and live records apart. A template is keyed by its
// name; a live record is keyed by the file name it was assigned when posted.
type Identity struct {
	live     bool
	fileName string
}

// Template returns the identity of a template record.
func Template() Identity { return Identity{} }

// Live returns the identity of a live record stored under fileName.
func Live(fileName string) Identity { return Identity{live: true, fileName: fileName} }

// IsTemplate reports whether the identity denotes a template.
func (i Identity) IsTemplate() bool { return !i.live }

// IsLive reports whether the identity denotes a live record.
func (i Identity) IsLive() bool { return i.live }

// FileName returns the live file name, or "" for templates.
func (i Identity) FileName() string { return i.fileName }

func (i Identity) String() string {
	if i.live {
		return "live(" + i.fileName + ")"
	}
	return "template"
}

// Role is one signup slot group on an operation.
type Role struct {
	Name string
	Icon string
	// MaxPositions caps the player list. Unlimited (-1) means no cap and
	// Hidden (0) disables the role entirely.
	MaxPositions int
	Players      []string
}

// Role capacity markers.
const (
	Unlimited = -1
	Hidden    = 0
)

// IsHidden reports whether the role accepts no signups and is not displayed.
func (r Role) IsHidden() bool { return r.MaxPositions == Hidden }

// IsUnlimited reports whether the role has no cap.
func (r Role) IsUnlimited() bool { return r.MaxPositions < 0 }

// IsFull reports whether no further player can join the role.
func (r Role) IsFull() bool {
	if r.IsUnlimited() {
		return false
	}
	return len(r.Players) >= r.MaxPositions
}

// SpotsLeft returns the remaining capacity, or -1 when unlimited.
func (r Role) SpotsLeft() int {
	if r.IsUnlimited() {
		return -1
	}
	return max(r.MaxPositions-len(r.Players), 0)
}

// Has reports whether userID is signed up for the role.
func (r Role) Has(userID string) bool { return slices.Contains(r.Players, userID) }

// Options are the per-operation feature toggles.
type Options struct {
	UseReserve          bool
	UseCompact          bool
	AutoStart           bool
	UseExternalFeedback bool
	IsGameEvent         bool
}

// Record is a single Operation, either a template or a live instance.
type Record struct {
	// ID is a locally reserved identifier assigned before the record is
	// posted. It never changes once set.
	ID       string
	Name     string
	Identity Identity
	// MessageID references the posted announcement and is empty until the
	// record has been posted successfully.
	MessageID string
	ChannelID string

	Date     time.Time
	Roles    []Role
	Reserves []string
	Options  Options
	Status   Status

	ManagedBy     string
	TargetChannel string
	Description   string
	CustomMessage string
	Arguments     []string
	Pingables     []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTemplate reports whether the record is a template.
func (r *Record) IsTemplate() bool { return r.Identity.IsTemplate() }

// FileName returns the live file name, or "" for templates.
func (r *Record) FileName() string { return r.Identity.FileName() }

// ChannelName returns the announcement channel name. An empty target channel
// falls back to the slug of the operation name.
func (r *Record) ChannelName() string {
	if r.TargetChannel != "" {
		return r.TargetChannel
	}
	return Slugify(r.Name)
}

// Role returns a pointer to the named role, matched case-insensitively.
func (r *Record) Role(name string) *Role {
	for i := range r.Roles {
		if strings.EqualFold(r.Roles[i].Name, name) {
			return &r.Roles[i]
		}
	}
	return nil
}

// Editable reports whether organizers may still edit the operation.
// Editing locks once the operation reaches PreStart.
func (r *Record) Editable() bool { return !r.Status.AtLeast(StatusPreStart) }

// SameOperation reports whether other describes the same operation. Records
// are deep-copied across edit flows so pointer identity is not enough; the
// local ID is compared first and name+date is the fallback.
func (r *Record) SameOperation(other *Record) bool {
	if r == nil || other == nil {
		return false
	}
	if r == other {
		return true
	}
	if r.ID != "" && r.ID == other.ID {
		return true
	}
	return r.Name == other.Name && r.Date.Equal(other.Date)
}

// Participants returns every signed-up user: role players in role order, then
// reserves when reserve is enabled. Duplicates are dropped.
func (r *Record) Participants() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, role := range r.Roles {
		for _, p := range role.Players {
			add(p)
		}
	}
	if r.Options.UseReserve {
		for _, p := range r.Reserves {
			add(p)
		}
	}
	return out
}

// SignupCount returns the number of players across all roles.
func (r *Record) SignupCount() int {
	n := 0
	for _, role := range r.Roles {
		n += len(role.Players)
	}
	return n
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.Roles = make([]Role, len(r.Roles))
	for i, role := range r.Roles {
		role.Players = slices.Clone(role.Players)
		c.Roles[i] = role
	}
	c.Reserves = slices.Clone(r.Reserves)
	c.Arguments = slices.Clone(r.Arguments)
	c.Pingables = slices.Clone(r.Pingables)
	return &c
}

// AsTemplate returns a fresh template copy with an empty roster and no
// posting state.
func (r *Record) AsTemplate() *Record {
	t := r.Clone()
	t.ID = ""
	t.Identity = Template()
	t.MessageID = ""
	t.ChannelID = ""
	t.Status = StatusEditing
	t.Reserves = nil
	for i := range t.Roles {
		t.Roles[i].Players = nil
	}
	return t
}

// Instantiate returns a live-ready copy of a template scheduled at date. The
// copy stays in Editing until it is posted.
func (r *Record) Instantiate(date time.Time, now time.Time) *Record {
	inst := r.AsTemplate()
	inst.Date = date.UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	return inst
}
