package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/muster/internal/core/doctor"
	"github.com/colonyops/muster/internal/core/styles"
	"github.com/colonyops/muster/pkg/iojson"
)

type DoctorCmd struct {
	flags   *Flags
	format  string
	autofix bool
}

// NewDoctorCmd creates a new doctor command.
func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

// Register adds the doctor command to the application.
func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your muster setup",
		UsageText:   "muster doctor [options]",
		Description: "Checks the configuration, data directory, database, operation files and autostart jobs.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "autofix",
				Usage:       "remove unreadable operation files and repair autostart jobs",
				Destination: &cmd.autofix,
			},
		},
		Action: cmd.run,
	})
	return app
}

type summaryJSON struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	results := cmd.flags.App.RunChecks(ctx, cmd.flags.ConfigPath, cmd.autofix)
	passed, warned, failed := doctor.Summary(results)

	if cmd.format == "json" {
		out := struct {
			Healthy bool            `json:"healthy"`
			Summary summaryJSON     `json:"summary"`
			Checks  []doctor.Result `json:"checks"`
		}{
			Healthy: failed == 0,
			Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed},
			Checks:  results,
		}
		if err := iojson.Write(c.Root().Writer, out); err != nil {
			return err
		}
	} else {
		cmd.writeText(c.Root().Writer, results)
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *DoctorCmd) writeText(w io.Writer, results []doctor.Result) {
	divider := styles.MutedStyle.Render(strings.Repeat("─", 40))

	_, _ = fmt.Fprintln(w, styles.HeaderStyle.Render("Muster Doctor"))
	_, _ = fmt.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)

	for _, result := range results {
		_, _ = fmt.Fprintln(w, styles.TitleStyle.Render(result.Name))

		for _, item := range result.Items {
			var detail string
			if item.Detail != "" {
				detail = " " + styles.MutedStyle.Render(item.Detail)
			}

			var icon string
			switch item.Status {
			case doctor.StatusPass:
				icon = styles.SuccessStyle.Render("✔")
			case doctor.StatusWarn:
				icon = styles.WarningStyle.Render("●")
			case doctor.StatusFail:
				icon = styles.ErrorStyle.Render("✘")
			}

			_, _ = fmt.Fprintf(w, "  %s %s%s\n", icon, item.Label, detail)
		}

		_, _ = fmt.Fprintln(w)
	}

	passed, warned, failed := doctor.Summary(results)
	_, _ = fmt.Fprintf(w, "%s  %s  %s\n",
		styles.SuccessStyle.Render(fmt.Sprintf("%d passed", passed)),
		styles.WarningStyle.Render(fmt.Sprintf("%d warnings", warned)),
		styles.ErrorStyle.Render(fmt.Sprintf("%d failed", failed)),
	)

	if fixable := doctor.CountFixable(results); fixable > 0 && !cmd.autofix {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, styles.MutedStyle.Render(fmt.Sprintf("Run 'muster doctor --autofix' to fix %d issue(s)", fixable)))
	}
}
