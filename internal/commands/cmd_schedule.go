package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/muster/internal/core/schedule"
	"github.com/colonyops/muster/internal/printer"
	"github.com/colonyops/muster/pkg/iojson"
)

type ScheduleCmd struct {
	flags *Flags

	post       bool
	jsonOutput bool
}

// NewScheduleCmd creates a new schedule command.
func NewScheduleCmd(flags *Flags) *ScheduleCmd {
	return &ScheduleCmd{flags: flags}
}

// Register adds the schedule command to the application.
func (cmd *ScheduleCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "schedule",
		Usage: "Read a weekly schedule message",
		Commands: []*cli.Command{
			{
				Name:      "parse",
				Usage:     "Match schedule entries to templates",
				UsageText: "muster schedule parse [--post] [--json] <file|->",
				Description: `Splits a weekly schedule message into weekday sections and bulleted entries.
Each entry is matched to the stored template sharing the most title words and
its <t:unix> timestamp is read as the start time.

With --post every entry that has both a template and a date is posted.`,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "post", Usage: "post every postable entry", Destination: &cmd.post},
					&cli.BoolFlag{Name: "json", Usage: "output matches as JSON lines", Destination: &cmd.jsonOutput},
				},
				Action: cmd.runParse,
			},
		},
	})

	return app
}

func (cmd *ScheduleCmd) runParse(ctx context.Context, c *cli.Command) error {
	text, err := readInput(c.Args().First())
	if err != nil {
		return err
	}

	app := cmd.flags.App
	matches := schedule.Parse(text, app.Manager.TemplateNames(ctx))

	out := c.Root().Writer
	if cmd.jsonOutput {
		for _, m := range matches {
			if err := iojson.WriteLine(out, m); err != nil {
				return fmt.Errorf("encode match: %w", err)
			}
		}
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "DAY\tTITLE\tTEMPLATE\tDATE\tORGANIZER")
		for _, m := range matches {
			date := "-"
			if m.HasDate() {
				date = m.Date.Local().Format("Mon 02 Jan 15:04")
			}
			tpl := m.TemplateName
			if tpl == "" {
				tpl = "-"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.Day, m.EventTitle, tpl, date, m.Organizer)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if !cmd.post {
		return nil
	}

	app.Load(ctx)
	p := printer.Ctx(ctx)
	failed := 0
	for _, m := range schedule.Postable(matches) {
		rec, err := app.Manager.PostMatch(ctx, m)
		if err != nil {
			failed++
			p.Errorf("%s: %v", m.EventTitle, userError("post", err))
			continue
		}
		p.Successf("posted %s (%s)", rec.Name, rec.ID)
	}
	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// readInput reads the named file, or stdin for "-".
func readInput(name string) (string, error) {
	switch name {
	case "":
		return "", errors.New("input file is required, use - for stdin")
	case "-":
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	default:
		b, err := os.ReadFile(name)
		return string(b), err
	}
}
