package chat

import (
	"time"

	"github.com/colonyops/muster/internal/core/operation"
)

// Control names the signup actions a platform should offer.
const (
	ControlReserve = operation.TargetReserve
	ControlResign  = operation.TargetResign
)

// RoleView is a render-ready role slot. Hidden roles never appear.
type RoleView struct {
	Name      string   `json:"name"`
	Icon      string   `json:"icon,omitempty"`
	Players   []string `json:"players"`
	Max       int      `json:"max"`
	Unlimited bool     `json:"unlimited,omitempty"`
	Full      bool     `json:"full,omitempty"`
}

// Announcement is the view model for an operation's signup message.
type Announcement struct {
	OperationID   string     `json:"operation_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	CustomMessage string     `json:"custom_message,omitempty"`
	ManagedBy     string     `json:"managed_by,omitempty"`
	Date          time.Time  `json:"date"`
	Status        string     `json:"status"`
	Roles         []RoleView `json:"roles"`
	Reserves      []string   `json:"reserves,omitempty"`
	ShowReserve   bool       `json:"show_reserve,omitempty"`
	Compact       bool       `json:"compact,omitempty"`
	Pingables     []string   `json:"pingables,omitempty"`
	SignupsOpen   bool       `json:"signups_open"`
	// Controls lists the signup targets to offer: role names followed by
	// reserve and resign when they apply.
	Controls []string `json:"controls,omitempty"`
}

// NewAnnouncement renders rec into a view model.
func NewAnnouncement(rec *operation.Record) Announcement {
	open := rec.Status.AtLeast(operation.StatusOpen) && rec.Status.Before(operation.StatusDebriefing)

	a := Announcement{
		OperationID:   rec.ID,
		Title:         rec.Name,
		Description:   rec.Description,
		CustomMessage: rec.CustomMessage,
		ManagedBy:     rec.ManagedBy,
		Date:          rec.Date,
		Status:        rec.Status.String(),
		ShowReserve:   rec.Options.UseReserve,
		Compact:       rec.Options.UseCompact,
		Pingables:     append([]string(nil), rec.Pingables...),
		SignupsOpen:   open,
	}

	for _, role := range rec.Roles {
		if role.IsHidden() {
			continue
		}
		a.Roles = append(a.Roles, RoleView{
			Name:      role.Name,
			Icon:      role.Icon,
			Players:   append([]string(nil), role.Players...),
			Max:       role.MaxPositions,
			Unlimited: role.IsUnlimited(),
			Full:      role.IsFull(),
		})
		if open && !role.IsFull() {
			a.Controls = append(a.Controls, role.Name)
		}
	}

	if rec.Options.UseReserve {
		a.Reserves = append([]string(nil), rec.Reserves...)
		if open {
			a.Controls = append(a.Controls, ControlReserve)
		}
	}
	if open {
		a.Controls = append(a.Controls, ControlResign)
	}

	return a
}
