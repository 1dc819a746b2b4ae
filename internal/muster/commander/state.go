package commander

import "fmt"

// State is the stage of a commander. States only move forward.
type State int

const (
	StateInit State = iota
	StateStandby
	StateAlerts
	StateWarmingUp
	StateStarted
	StateDebrief
	StateEnded
)

var stateNames = [...]string{
	StateInit:      "init",
	StateStandby:   "standby",
	StateAlerts:    "alerts",
	StateWarmingUp: "warming-up",
	StateStarted:   "started",
	StateDebrief:   "debrief",
	StateEnded:     "ended",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Waiting reports whether the commander is set up and counting down to the
// start.
func (s State) Waiting() bool {
	return s >= StateStandby && s < StateStarted
}

// GuardResult is the outcome of a transition check.
type GuardResult struct {
	Allowed bool
	Reason  string
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(format string, args ...any) GuardResult {
	return GuardResult{Reason: fmt.Sprintf(format, args...)}
}

// CanTransition reports whether a commander in from may move to to.
func CanTransition(from, to State) GuardResult {
	if to <= from {
		return deny("cannot move from %s back to %s", from, to)
	}

	switch to {
	case StateStandby:
		if from != StateInit {
			return deny("already set up")
		}
	case StateAlerts, StateWarmingUp:
		if !from.Waiting() {
			return deny("alerts need a commander in standby, not %s", from)
		}
	case StateStarted:
		if !from.Waiting() {
			return deny("cannot start from %s", from)
		}
	case StateDebrief:
		if from != StateStarted {
			return deny("debrief needs a started operation, not %s", from)
		}
	case StateEnded:
	default:
		return deny("unknown state %s", to)
	}
	return allow()
}
