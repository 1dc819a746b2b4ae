// Package config handles configuration loading and validation for muster.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/muster/internal/core/styles"
)

// AutostartMarginMinutes is added to the configured lead time so commander
// setup finishes before the lead window opens.
const AutostartMarginMinutes = 5

// Config holds the application configuration.
type Config struct {
	Autostart  AutostartConfig  `yaml:"autostart"`
	Operations OperationsConfig `yaml:"operations"`
	Store      StoreConfig      `yaml:"store"`
	Commander  CommanderConfig  `yaml:"commander"`
	Database   DatabaseConfig   `yaml:"database"`
	Console    ConsoleConfig    `yaml:"console"`
	Templates  []Template       `yaml:"templates"`
	DataDir    string           `yaml:"-"` // set by caller, not from config file
}

// AutostartConfig controls automatic commander creation.
type AutostartConfig struct {
	Enabled     bool `yaml:"enabled"`
	LeadMinutes int  `yaml:"lead_minutes"`
}

// Lead returns the full offset before an operation's start at which its
// autostart job fires.
func (a AutostartConfig) Lead() time.Duration {
	return time.Duration(a.LeadMinutes+AutostartMarginMinutes) * time.Minute
}

// FireTime returns when the autostart job for an operation starting at start
// should fire.
func (a AutostartConfig) FireTime(start time.Time) time.Time {
	return start.Add(-a.Lead())
}

// OperationsConfig controls live operation bookkeeping.
type OperationsConfig struct {
	// SignupCategory is the category new announcement channels are created in.
	SignupCategory string `yaml:"signup_category"`
	// AutoPrune removes operations whose date has passed during refresh.
	AutoPrune bool `yaml:"auto_prune"`
	// RecreateTemplate writes an archived operation back as a fresh template.
	RecreateTemplate bool          `yaml:"recreate_template"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
}

// StoreConfig tunes the lock-marker protocol of the operation file store.
type StoreConfig struct {
	LockAttempts int           `yaml:"lock_attempts"`
	LockDelay    time.Duration `yaml:"lock_delay"`
}

// CommanderConfig controls the channels and timing of running operations.
type CommanderConfig struct {
	AlertInterval        time.Duration `yaml:"alert_interval"`
	WarmupMinutes        int           `yaml:"warmup_minutes"`
	DebriefWindow        time.Duration `yaml:"debrief_window"`
	SessionLength        time.Duration `yaml:"session_length"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	ControlChannel       string        `yaml:"control_channel"`
	NotificationsChannel string        `yaml:"notifications_channel"`
	StandbyChannel       string        `yaml:"standby_channel"`
	Squads               []string      `yaml:"squads"`
	PersistentChannels   []string      `yaml:"persistent_channels"`
	// FallbackVoiceChannel receives members still connected at teardown.
	// Empty leaves them to be disconnected by the channel deletion.
	FallbackVoiceChannel string `yaml:"fallback_voice_channel"`
}

// Warmup returns the window before start during which alerts switch to
// warming up.
func (c CommanderConfig) Warmup() time.Duration {
	return time.Duration(c.WarmupMinutes) * time.Minute
}

// DatabaseConfig holds SQLite connection settings.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// ConsoleConfig controls the built-in console chat platform.
type ConsoleConfig struct {
	Theme string `yaml:"theme"`
	// Width caps rendered announcements. Zero uses the terminal width.
	Width int `yaml:"width"`
}

// Template is a seed operation template imported by `muster template import`.
type Template struct {
	Name          string     `yaml:"name"`
	Description   string     `yaml:"description"`
	Channel       string     `yaml:"channel"`
	ManagedBy     string     `yaml:"managed_by"`
	CustomMessage string     `yaml:"custom_message"`
	Arguments     []string   `yaml:"arguments"`
	Pingables     []string   `yaml:"pingables"`
	Roles         []RoleSeed `yaml:"roles"`
}

// RoleSeed is a role definition inside a seed template.
type RoleSeed struct {
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
	// Max is the role capacity: -1 unlimited, 0 hidden.
	Max int `yaml:"max"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Autostart: AutostartConfig{
			Enabled:     true,
			LeadMinutes: 45,
		},
		Operations: OperationsConfig{
			SignupCategory:  "signups",
			AutoPrune:       true,
			RefreshInterval: 5 * time.Minute,
		},
		Store: StoreConfig{
			LockAttempts: 10,
			LockDelay:    100 * time.Millisecond,
		},
		Commander: CommanderConfig{
			AlertInterval:        5 * time.Minute,
			WarmupMinutes:        15,
			DebriefWindow:        10 * time.Minute,
			SessionLength:        2 * time.Hour,
			PollInterval:         15 * time.Second,
			ControlChannel:       "commander",
			NotificationsChannel: "notifications",
			StandbyChannel:       "standby",
			Squads:               []string{"Alpha", "Bravo", "Charlie", "Delta"},
		},
		Console: ConsoleConfig{
			Theme: styles.DefaultTheme,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Operations.SignupCategory == "" {
		c.Operations.SignupCategory = defaults.Operations.SignupCategory
	}
	if c.Operations.RefreshInterval == 0 {
		c.Operations.RefreshInterval = defaults.Operations.RefreshInterval
	}
	if c.Store.LockAttempts == 0 {
		c.Store.LockAttempts = defaults.Store.LockAttempts
	}
	if c.Store.LockDelay == 0 {
		c.Store.LockDelay = defaults.Store.LockDelay
	}
	if c.Commander.AlertInterval == 0 {
		c.Commander.AlertInterval = defaults.Commander.AlertInterval
	}
	if c.Commander.SessionLength == 0 {
		c.Commander.SessionLength = defaults.Commander.SessionLength
	}
	if c.Commander.PollInterval == 0 {
		c.Commander.PollInterval = defaults.Commander.PollInterval
	}
	if c.Commander.ControlChannel == "" {
		c.Commander.ControlChannel = defaults.Commander.ControlChannel
	}
	if c.Commander.NotificationsChannel == "" {
		c.Commander.NotificationsChannel = defaults.Commander.NotificationsChannel
	}
	if c.Commander.StandbyChannel == "" {
		c.Commander.StandbyChannel = defaults.Commander.StandbyChannel
	}
	if c.Console.Theme == "" {
		c.Console.Theme = defaults.Console.Theme
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Autostart.LeadMinutes < 0 {
		return fmt.Errorf("autostart.lead_minutes cannot be negative")
	}

	if c.Store.LockAttempts < 1 {
		return fmt.Errorf("store.lock_attempts must be at least 1")
	}

	if c.Store.LockDelay <= 0 {
		return fmt.Errorf("store.lock_delay must be positive")
	}

	if c.Operations.RefreshInterval < time.Second {
		return fmt.Errorf("operations.refresh_interval must be at least 1s")
	}

	if c.Commander.AlertInterval <= 0 {
		return fmt.Errorf("commander.alert_interval must be positive")
	}

	if c.Commander.WarmupMinutes < 0 {
		return fmt.Errorf("commander.warmup_minutes cannot be negative")
	}

	if c.Commander.DebriefWindow < 0 {
		return fmt.Errorf("commander.debrief_window cannot be negative")
	}

	if c.Commander.SessionLength <= 0 {
		return fmt.Errorf("commander.session_length must be positive")
	}

	if c.Commander.PollInterval < time.Second {
		return fmt.Errorf("commander.poll_interval must be at least 1s")
	}

	if _, ok := styles.GetPalette(c.Console.Theme); !ok {
		return fmt.Errorf("console.theme %q is not one of %s", c.Console.Theme, strings.Join(styles.ThemeNames(), ", "))
	}

	if c.Console.Width < 0 {
		return fmt.Errorf("console.width cannot be negative")
	}

	squads := make(map[string]bool, len(c.Commander.Squads))
	for _, s := range c.Commander.Squads {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			return fmt.Errorf("commander.squads cannot contain empty names")
		}
		if squads[key] {
			return fmt.Errorf("commander.squads has duplicate squad %q", s)
		}
		squads[key] = true
	}

	names := make(map[string]bool, len(c.Templates))
	for i, t := range c.Templates {
		if err := t.Validate(i); err != nil {
			return err
		}
		if names[t.Name] {
			return fmt.Errorf("templates[%d]: duplicate template name %q", i, t.Name)
		}
		names[t.Name] = true
	}

	return nil
}

// Validate checks that a seed template definition is valid.
func (t *Template) Validate(index int) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("templates[%d]: name is required", index)
	}

	roles := make(map[string]bool, len(t.Roles))
	for j, r := range t.Roles {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("template %q: role %d: name is required", t.Name, j)
		}
		key := strings.ToLower(r.Name)
		if roles[key] {
			return fmt.Errorf("template %q: duplicate role name %q", t.Name, r.Name)
		}
		roles[key] = true
		if r.Max < -1 {
			return fmt.Errorf("template %q: role %q: max must be -1 (unlimited) or more", t.Name, r.Name)
		}
	}

	return nil
}

// OperationsDir returns the root of the operation file store.
func (c *Config) OperationsDir() string {
	return filepath.Join(c.DataDir, "operations")
}

// LiveDir returns the directory holding live operation files.
func (c *Config) LiveDir() string {
	return filepath.Join(c.OperationsDir(), "live")
}

// TemplateDir returns the directory holding template files.
func (c *Config) TemplateDir() string {
	return filepath.Join(c.OperationsDir(), "templates")
}
