package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/muster/internal/core/operation"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration
// including file accessibility and seed template arguments. The configPath
// argument specifies the config file location to validate (empty string skips
// the config file check). This calls Validate() first for basic structural
// validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateTemplateArguments(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Autostart.Enabled && c.Commander.Warmup() > c.Autostart.Lead() {
		warnings = append(warnings, ValidationWarning{
			Category: "Commander",
			Item:     "warmup_minutes",
			Message:  "warm-up window is longer than the autostart lead, alerts will start warmed up",
		})
	}

	if c.Commander.FallbackVoiceChannel == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Commander",
			Item:     "fallback_voice_channel",
			Message:  "no fallback voice channel, connected members are dropped at teardown",
		})
	}

	for i, t := range c.Templates {
		if len(t.Roles) == 0 {
			warnings = append(warnings, ValidationWarning{
				Category: "Templates",
				Item:     fmt.Sprintf("templates[%d]", i),
				Message:  fmt.Sprintf("template %q has no roles", t.Name),
			})
		}
	}

	return warnings
}

// validateFileAccess checks the config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

// validateTemplateArguments checks that seed template arguments are known
// option toggles.
func (c *Config) validateTemplateArguments() error {
	var errs criterio.FieldErrorsBuilder
	for i, t := range c.Templates {
		_, unknown := operation.ApplyArguments(operation.Options{}, t.Arguments)
		if len(unknown) > 0 {
			errs = errs.Append(
				fmt.Sprintf("templates[%d].arguments", i),
				fmt.Errorf("unknown arguments: %s", strings.Join(unknown, ", ")),
			)
		}
	}
	return errs.ToError()
}
