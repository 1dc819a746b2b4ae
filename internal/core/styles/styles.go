// Package styles provides the shared lipgloss styles for CLI output and the
// console chat platform.
package styles

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Palette defines a minimal semantic theme palette.
type Palette struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Surface    lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// DefaultTheme is the name of the default theme.
const DefaultTheme = "tokyo-night"

// themes holds the built-in named palettes.
var themes = map[string]Palette{
	"tokyo-night": {
		Primary:    lipgloss.Color("#7aa2f7"),
		Secondary:  lipgloss.Color("#7dcfff"),
		Foreground: lipgloss.Color("#c0caf5"),
		Muted:      lipgloss.Color("#565f89"),
		Surface:    lipgloss.Color("#3b4261"),
		Success:    lipgloss.Color("#9ece6a"),
		Warning:    lipgloss.Color("#e0af68"),
		Error:      lipgloss.Color("#f7768e"),
	},
	"gruvbox": {
		Primary:    lipgloss.Color("#83a598"),
		Secondary:  lipgloss.Color("#8ec07c"),
		Foreground: lipgloss.Color("#ebdbb2"),
		Muted:      lipgloss.Color("#665c54"),
		Surface:    lipgloss.Color("#3c3836"),
		Success:    lipgloss.Color("#b8bb26"),
		Warning:    lipgloss.Color("#fabd2f"),
		Error:      lipgloss.Color("#fb4934"),
	},
	"mono": {
		Primary:    lipgloss.Color("15"),
		Secondary:  lipgloss.Color("7"),
		Foreground: lipgloss.Color("7"),
		Muted:      lipgloss.Color("8"),
		Surface:    lipgloss.Color("0"),
		Success:    lipgloss.Color("7"),
		Warning:    lipgloss.Color("15"),
		Error:      lipgloss.Color("15"),
	},
}

// ThemeNames returns sorted names of all built-in themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPalette returns the palette for the given theme name.
func GetPalette(name string) (Palette, bool) {
	p, ok := themes[name]
	return p, ok
}

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

// Style exports.
var (
	// CLI styles.
	HeaderStyle  lipgloss.Style
	MutedStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
	WarningStyle lipgloss.Style
	ErrorStyle   lipgloss.Style

	// Console platform styles.
	ChannelStyle      lipgloss.Style
	CategoryStyle     lipgloss.Style
	AnnouncementStyle lipgloss.Style
	TitleStyle        lipgloss.Style
	RoleStyle         lipgloss.Style
	RoleFullStyle     lipgloss.Style
	ControlStyle      lipgloss.Style
	BotMessageStyle   lipgloss.Style
)

func init() {
	p, _ := GetPalette(DefaultTheme)
	SetTheme(p)
}

// SetTheme rebuilds every exported style from p.
func SetTheme(p Palette) {
	CurrentPalette = p

	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(p.Primary)
	MutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	SuccessStyle = lipgloss.NewStyle().Foreground(p.Success)
	WarningStyle = lipgloss.NewStyle().Foreground(p.Warning)
	ErrorStyle = lipgloss.NewStyle().Foreground(p.Error)

	ChannelStyle = lipgloss.NewStyle().Foreground(p.Secondary)
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(p.Primary)
	AnnouncementStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Surface).
		Padding(0, 1)
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(p.Foreground)
	RoleStyle = lipgloss.NewStyle().Foreground(p.Success)
	RoleFullStyle = lipgloss.NewStyle().Foreground(p.Warning)
	ControlStyle = lipgloss.NewStyle().Foreground(p.Muted).Italic(true)
	BotMessageStyle = lipgloss.NewStyle().Foreground(p.Foreground)
}
