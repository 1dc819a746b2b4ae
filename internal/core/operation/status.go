package operation

import "fmt"

// Status is the lifecycle stage of an Operation.
type Status int

// Status values. Gating logic goes through Rank, never through these raw
// values, so the declaration order carries no meaning.
const (
	StatusEditing Status = iota
	StatusOpen
	StatusPreStart
	StatusStarted
	StatusDebriefing
)

// statusOrder is the authoritative ordering of the lifecycle.
var statusOrder = map[Status]int{
	StatusEditing:    0,
	StatusOpen:       1,
	StatusPreStart:   2,
	StatusStarted:    3,
	StatusDebriefing: 4,
}

var statusNames = map[Status]string{
	StatusEditing:    "editing",
	StatusOpen:       "open",
	StatusPreStart:   "prestart",
	StatusStarted:    "started",
	StatusDebriefing: "debriefing",
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusEditing, StatusOpen, StatusPreStart, StatusStarted, StatusDebriefing}
}

// Rank returns the position of s in the lifecycle, or -1 for an unknown status.
func (s Status) Rank() int {
	if r, ok := statusOrder[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is at or past other in the lifecycle.
func (s Status) AtLeast(other Status) bool { return s.Rank() >= other.Rank() }

// Before reports whether s comes strictly before other in the lifecycle.
func (s Status) Before(other Status) bool { return s.Rank() < other.Rank() }

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool { return s.Rank() >= 0 }

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus parses a status name as returned by String.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return StatusEditing, fmt.Errorf("unknown status %q", name)
}
