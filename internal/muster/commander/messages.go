package commander

import (
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/muster/internal/core/operation"
)

func infoText(rec *operation.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rec.Name)
	fmt.Fprintf(&b, "Starts %s\n", rec.Date.UTC().Format("Mon 02 Jan 15:04 MST"))
	if rec.ManagedBy != "" {
		fmt.Fprintf(&b, "Managed by %s\n", rec.ManagedBy)
	}
	if rec.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", rec.Description)
	}
	b.WriteString("\nRoles:\n")
	for _, role := range rec.Roles {
		if role.IsHidden() {
			continue
		}
		if role.IsUnlimited() {
			fmt.Fprintf(&b, "- %s: %d\n", role.Name, len(role.Players))
		} else {
			fmt.Fprintf(&b, "- %s: %d/%d\n", role.Name, len(role.Players), role.MaxPositions)
		}
	}
	if rec.Options.UseReserve {
		fmt.Fprintf(&b, "- Reserve: %d\n", len(rec.Reserves))
	}
	return strings.TrimRight(b.String(), "\n")
}

func alertText(rec *operation.Record, until time.Duration, state State, standby string) string {
	until = until.Round(time.Minute)
	if until < 0 {
		until = 0
	}

	var b strings.Builder
	if state == StateWarmingUp {
		fmt.Fprintf(&b, "%s is warming up and starts in %s.", rec.Name, until)
	} else {
		fmt.Fprintf(&b, "%s starts in %s.", rec.Name, until)
	}
	if standby != "" {
		fmt.Fprintf(&b, " Join %s to be placed in a squad.", standby)
	}
	if len(rec.Pingables) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(rec.Pingables, " "))
	}
	return b.String()
}

func debriefText(rec *operation.Record, window time.Duration, collect bool) string {
	if !collect {
		return fmt.Sprintf("%s is over. Thanks for playing! Channels close in %s.", rec.Name, window)
	}
	return fmt.Sprintf("%s is over. Feedback is open for %s and stays anonymous.", rec.Name, window)
}

func statusText(rec *operation.Record, attendees []Attendee, elapsed time.Duration) string {
	present := 0
	for _, a := range attendees {
		if a.Present {
			present++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: running for %s, %d/%d present\n", rec.Name, elapsed.Round(time.Minute), present, len(attendees))
	for _, a := range attendees {
		mark := "-"
		if a.Present {
			mark = "+"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, a.Handle)
	}
	return strings.TrimRight(b.String(), "\n")
}
