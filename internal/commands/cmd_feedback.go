package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/muster/internal/muster"
	"github.com/colonyops/muster/internal/printer"
	"github.com/colonyops/muster/pkg/iojson"
)

type FeedbackCmd struct {
	flags *Flags

	jsonOutput bool
}

// NewFeedbackCmd creates a new feedback command.
func NewFeedbackCmd(flags *Flags) *FeedbackCmd {
	return &FeedbackCmd{flags: flags}
}

// Register adds the feedback command to the application.
func (cmd *FeedbackCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "feedback",
		Usage: "Submit and read anonymous debrief feedback",
		Commands: []*cli.Command{
			{
				Name:      "submit",
				Usage:     "Submit feedback for an operation in debrief",
				UsageText: "muster feedback submit <operation> <user-id> <text...>",
				Description: `Queues the feedback for the running server. It is accepted only while the
operation's debrief is open and only once per participant.`,
				ShellComplete: OperationCompleter(cmd.flags),
				Action:        cmd.runSubmit,
			},
			{
				Name:      "ls",
				Usage:     "List feedback for an operation",
				UsageText: "muster feedback ls [--json] <file-name>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "output as JSON lines", Destination: &cmd.jsonOutput},
				},
				Action: cmd.runList,
			},
		},
	})

	return app
}

func (cmd *FeedbackCmd) runSubmit(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() < 3 {
		return fmt.Errorf("expected <operation> <user-id> <text>")
	}

	app := cmd.flags.App
	app.Load(ctx)
	rec, err := findOperation(app.Manager, c.Args().Get(0))
	if err != nil {
		return err
	}

	req := muster.Request{
		OperationID: rec.ID,
		Action:      muster.ActionFeedback,
		UserID:      c.Args().Get(1),
		Body:        strings.Join(c.Args().Slice()[2:], " "),
	}
	if _, err := app.Requests.Enqueue(ctx, req); err != nil {
		return err
	}
	printer.Ctx(ctx).Infof("feedback queued for %s", rec.Name)
	return nil
}

func (cmd *FeedbackCmd) runList(ctx context.Context, c *cli.Command) error {
	// Feedback outlives the operation, so the file name is taken as is.
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("operation file name is required")
	}

	entries, err := cmd.flags.App.Feedback.List(ctx, name)
	if err != nil {
		return fmt.Errorf("list feedback: %w", err)
	}
	if len(entries) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No feedback for %s\n", name)
		}
		return nil
	}

	out := c.Root().Writer
	for _, e := range entries {
		if cmd.jsonOutput {
			if err := iojson.WriteLine(out, e); err != nil {
				return fmt.Errorf("encode feedback: %w", err)
			}
			continue
		}
		_, _ = fmt.Fprintf(out, "[%s] %s\n", e.CreatedAt.Local().Format("02 Jan 15:04"), e.Body)
	}
	return nil
}
