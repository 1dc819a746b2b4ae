package console

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/colonyops/muster/internal/core/chat"
	"github.com/colonyops/muster/internal/core/styles"
)

const defaultWidth = 80

func (p *Platform) renderWidth() int {
	if p.width > 0 {
		return p.width
	}
	if f, ok := p.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

func (p *Platform) print(ch chat.Channel, m Message, edited bool) {
	header := styles.ChannelStyle.Render("#"+ch.Name) + " " + styles.MutedStyle.Render(m.SentAt.Format("15:04"))
	if edited {
		header += " " + styles.MutedStyle.Render("(edited)")
	}

	var body string
	if m.Announcement != nil {
		body = RenderAnnouncement(*m.Announcement, p.renderWidth())
	} else {
		body = styles.BotMessageStyle.Render(m.Text)
	}

	if _, err := fmt.Fprintln(p.out, header+"\n"+body); err != nil {
		p.logger.Warn().Err(err).Msg("console write failed")
	}
}

// RenderAnnouncement draws a signup announcement as a bordered card at most
// width columns wide.
func RenderAnnouncement(a chat.Announcement, width int) string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(a.Title))
	b.WriteString("\n")
	b.WriteString(styles.MutedStyle.Render(a.Date.Format("Mon 02 Jan 2006 15:04 MST") + " · " + a.Status))
	if a.ManagedBy != "" {
		b.WriteString(styles.MutedStyle.Render(" · managed by " + a.ManagedBy))
	}
	b.WriteString("\n")

	if a.Description != "" {
		b.WriteString("\n" + a.Description + "\n")
	}
	if a.CustomMessage != "" {
		b.WriteString("\n" + a.CustomMessage + "\n")
	}

	b.WriteString("\n")
	for _, role := range a.Roles {
		b.WriteString(renderRole(role, a.Compact))
		b.WriteString("\n")
	}

	if a.ShowReserve {
		b.WriteString("\n" + styles.HeaderStyle.Render(fmt.Sprintf("Reserve (%d)", len(a.Reserves))))
		if len(a.Reserves) > 0 && !a.Compact {
			b.WriteString("\n  " + strings.Join(a.Reserves, ", "))
		}
		b.WriteString("\n")
	}

	if len(a.Pingables) > 0 {
		b.WriteString("\n" + strings.Join(a.Pingables, " ") + "\n")
	}

	if a.SignupsOpen && len(a.Controls) > 0 {
		b.WriteString("\n" + styles.ControlStyle.Render("[ "+strings.Join(a.Controls, " | ")+" ]"))
	} else if !a.SignupsOpen {
		b.WriteString("\n" + styles.ControlStyle.Render("signups closed"))
	}

	card := styles.AnnouncementStyle
	// Border and padding take four columns.
	if width > 4 {
		card = card.Width(width - 4)
	}
	return card.Render(strings.TrimRight(b.String(), "\n"))
}

func renderRole(role chat.RoleView, compact bool) string {
	label := role.Name
	if role.Icon != "" {
		label = role.Icon + " " + label
	}

	count := fmt.Sprintf("%d", len(role.Players))
	if !role.Unlimited {
		count += fmt.Sprintf("/%d", role.Max)
	}

	style := styles.RoleStyle
	if role.Full {
		style = styles.RoleFullStyle
	}
	line := style.Render(label) + " " + styles.MutedStyle.Render("("+count+")")
	if compact || len(role.Players) == 0 {
		return line
	}
	return lipgloss.JoinVertical(lipgloss.Left, line, "  "+strings.Join(role.Players, ", "))
}
