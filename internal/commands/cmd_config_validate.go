package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/muster/internal/core/config"
	"github.com/colonyops/muster/internal/printer"
	"github.com/colonyops/muster/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "muster config validate [options]",
				Description: "Validates the configuration file, checking file access, seed templates and their arguments.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validateOutput struct {
	Valid    bool                       `json:"valid"`
	Error    string                     `json:"error,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	err := cfg.ValidateDeep(cmd.flags.ConfigPath)
	warnings := cfg.Warnings()

	if cmd.format == "json" {
		out := validateOutput{Valid: err == nil, Warnings: warnings}
		if err != nil {
			out.Error = err.Error()
		}
		if werr := iojson.Write(c.Root().Writer, out); werr != nil {
			return werr
		}
		if err != nil {
			return cli.Exit("", 1)
		}
		return nil
	}

	p := printer.Ctx(ctx)
	for _, warn := range warnings {
		p.Warnf("%s: %s", warn.Category, warn.Message)
		if warn.Item != "" {
			p.Printf("  Item: %s", warn.Item)
		}
	}

	if err != nil {
		p.Errorf("%v", err)
		return cli.Exit("", 1)
	}

	p.Successf("Configuration is valid")
	return nil
}
