package operation

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Signup targets that are not role names.
const (
	TargetReserve = "reserve"
	TargetResign  = "resign"
)

// Eviction records a player removed from a role because its capacity shrank.
// Evictions are a notification obligation for the UI, not part of the record.
type Eviction struct {
	UserID    string
	Role      string
	ToReserve bool
}

// IsSignedUp reports whether userID is on any role or on the reserve list.
func (r *Record) IsSignedUp(userID string) bool {
	if slices.Contains(r.Reserves, userID) {
		return true
	}
	for _, role := range r.Roles {
		if role.Has(userID) {
			return true
		}
	}
	return false
}

// RoleOf returns the name of the role userID plays, or "" when none.
func (r *Record) RoleOf(userID string) string {
	for _, role := range r.Roles {
		if role.Has(userID) {
			return role.Name
		}
	}
	return ""
}

// RemoveUser removes userID from every role and from the reserve list and
// reports whether anything was removed.
func (r *Record) RemoveUser(userID string) bool {
	removed := false
	for i := range r.Roles {
		before := len(r.Roles[i].Players)
		r.Roles[i].Players = slices.DeleteFunc(r.Roles[i].Players, func(p string) bool { return p == userID })
		removed = removed || len(r.Roles[i].Players) != before
	}
	before := len(r.Reserves)
	r.Reserves = slices.DeleteFunc(r.Reserves, func(p string) bool { return p == userID })
	return removed || len(r.Reserves) != before
}

// CheckSignup validates a signup without mutating the record.
func (r *Record) CheckSignup(userID, target string) error {
	if r.IsTemplate() || r.Status.Before(StatusOpen) || r.Status.AtLeast(StatusDebriefing) {
		return ErrSignupsClosed
	}

	switch strings.ToLower(target) {
	case TargetResign:
		if !r.IsSignedUp(userID) {
			return ErrNotSignedUp
		}
	case TargetReserve:
		if !r.Options.UseReserve {
			return ErrReserveDisabled
		}
		if slices.Contains(r.Reserves, userID) {
			return ErrAlreadySignedUp
		}
	default:
		role := r.Role(target)
		switch {
		case role == nil:
			return fmt.Errorf("%w: %q", ErrRoleNotFound, target)
		case role.IsHidden():
			return ErrRoleHidden
		case role.Has(userID):
			return ErrAlreadySignedUp
		case role.IsFull():
			return ErrRoleFull
		}
	}
	return nil
}

// Signup moves userID to target: a role name, TargetReserve or TargetResign.
// The user is first removed from everywhere and then added, so a user is
// never on two lists at once.
func (r *Record) Signup(userID, target string, now time.Time) error {
	if err := r.CheckSignup(userID, target); err != nil {
		return err
	}

	r.RemoveUser(userID)

	switch strings.ToLower(target) {
	case TargetResign:
	case TargetReserve:
		r.Reserves = append(r.Reserves, userID)
	default:
		role := r.Role(target)
		role.Players = append(role.Players, userID)
	}

	r.UpdatedAt = now
	return nil
}

// ApplyRoles replaces the role definitions with roles. Players carry over by
// role name; players of roles that no longer exist, and the newest players of
// roles whose capacity shrank, are evicted.
func (r *Record) ApplyRoles(roles []Role, now time.Time) ([]Eviction, error) {
	if !r.Editable() {
		return nil, ErrNotEditable
	}

	seen := make(map[string]bool, len(roles))
	for _, role := range roles {
		key := strings.ToLower(role.Name)
		if seen[key] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRole, role.Name)
		}
		seen[key] = true
	}

	next := make([]Role, len(roles))
	for i, role := range roles {
		role.Players = nil
		if old := r.Role(role.Name); old != nil {
			role.Players = slices.Clone(old.Players)
		}
		next[i] = role
	}

	// Players of dropped roles are evicted as if the role shrank to zero.
	var orphans []Eviction
	for _, old := range r.Roles {
		if seen[strings.ToLower(old.Name)] {
			continue
		}
		for _, p := range old.Players {
			orphans = append(orphans, Eviction{UserID: p, Role: old.Name})
		}
	}

	r.Roles = next
	evictions := append(orphans, r.EnforceCapacity()...)
	r.placeEvicted(evictions)
	r.UpdatedAt = now
	return evictions, nil
}

// EnforceCapacity trims every role down to its capacity, evicting from the end
// of the player list (last joined, first evicted). Hidden roles lose all their
// players. The evicted users are not placed anywhere; see ApplyRoles.
func (r *Record) EnforceCapacity() []Eviction {
	var evictions []Eviction
	for i := range r.Roles {
		role := &r.Roles[i]
		if role.IsUnlimited() || len(role.Players) <= role.MaxPositions {
			continue
		}
		excess := role.Players[role.MaxPositions:]
		for _, p := range excess {
			evictions = append(evictions, Eviction{UserID: p, Role: role.Name})
		}
		role.Players = slices.Clone(role.Players[:role.MaxPositions])
	}
	return evictions
}

// placeEvicted moves evicted users to the front of the reserve list, keeping
// their join order, or drops them when reserve is disabled.
func (r *Record) placeEvicted(evictions []Eviction) {
	if len(evictions) == 0 {
		return
	}
	if !r.Options.UseReserve {
		return
	}

	front := make([]string, 0, len(evictions))
	for i := range evictions {
		id := evictions[i].UserID
		evictions[i].ToReserve = true
		if slices.Contains(front, id) {
			continue
		}
		front = append(front, id)
	}
	rest := slices.DeleteFunc(slices.Clone(r.Reserves), func(p string) bool { return slices.Contains(front, p) })
	r.Reserves = append(front, rest...)
}
