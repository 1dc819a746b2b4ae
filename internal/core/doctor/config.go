package doctor

import (
	"context"

	"github.com/colonyops/muster/internal/core/config"
)

// ConfigCheck validates the configuration and surfaces its warnings.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

// NewConfigCheck creates a config check for cfg loaded from path.
func NewConfigCheck(cfg *config.Config, path string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: path}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if err := c.cfg.ValidateDeep(c.path); err != nil {
		result.add(c.path, StatusFail, err.Error())
		return result
	}
	result.add(c.path, StatusPass, "")

	for _, w := range c.cfg.Warnings() {
		label := w.Category
		if w.Item != "" {
			label += "." + w.Item
		}
		result.add(label, StatusWarn, w.Message)
	}

	return result
}
