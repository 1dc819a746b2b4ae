package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/muster/internal/core/notify"
	"github.com/colonyops/muster/internal/core/styles"
	"github.com/colonyops/muster/internal/printer"
)

type NotificationsCmd struct {
	flags *Flags

	limit int
}

// NewNotificationsCmd creates a new notifications command.
func NewNotificationsCmd(flags *Flags) *NotificationsCmd {
	return &NotificationsCmd{flags: flags}
}

// Register adds the notifications command to the application.
func (cmd *NotificationsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "notifications",
		Aliases: []string{"notes"},
		Usage:   "Show what the bot did recently",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "number of notifications to show",
				Value:       20,
				Destination: &cmd.limit,
			},
		},
		Action: cmd.runList,
		Commands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Delete every stored notification",
				Action: func(ctx context.Context, _ *cli.Command) error {
					if err := cmd.flags.App.Notifications.Clear(ctx); err != nil {
						return fmt.Errorf("clear notifications: %w", err)
					}
					printer.Ctx(ctx).Successf("notifications cleared")
					return nil
				},
			},
		},
	})

	return app
}

func (cmd *NotificationsCmd) runList(ctx context.Context, c *cli.Command) error {
	notes, err := cmd.flags.App.Notifications.List(ctx, cmd.limit)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	if len(notes) == 0 {
		fmt.Fprintf(os.Stderr, "No notifications\n")
		return nil
	}

	out := c.Root().Writer
	// Oldest first reads like a log.
	for i := len(notes) - 1; i >= 0; i-- {
		n := notes[i]
		level := string(n.Level)
		switch n.Level {
		case notify.LevelWarning:
			level = styles.WarningStyle.Render(level)
		case notify.LevelError:
			level = styles.ErrorStyle.Render(level)
		default:
			level = styles.MutedStyle.Render(level)
		}
		_, _ = fmt.Fprintf(out, "%s %s %s\n", styles.MutedStyle.Render(n.CreatedAt.Local().Format("02 Jan 15:04")), level, n.Message)
	}
	return nil
}
