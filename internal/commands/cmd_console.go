package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/muster/internal/core/chat"
	"github.com/colonyops/muster/internal/core/styles"
	"github.com/colonyops/muster/internal/platform/console"
	"github.com/colonyops/muster/internal/printer"
)

type ConsoleCmd struct {
	flags *Flags
}

// NewConsoleCmd creates a new console command.
func NewConsoleCmd(flags *Flags) *ConsoleCmd {
	return &ConsoleCmd{flags: flags}
}

// Register adds the console command to the application.
func (cmd *ConsoleCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "console",
		Usage: "Inspect and drive the local console chat platform",
		Description: `The console platform keeps channels, messages, users and voice members in the
local database. These commands stand in for the people on a real chat server.`,
		Commands: []*cli.Command{
			{
				Name:   "channels",
				Usage:  "Show the channel tree",
				Action: cmd.runChannels,
			},
			{
				Name:      "messages",
				Usage:     "Print the messages of a channel",
				UsageText: "muster console messages <channel-id|name>",
				Action:    cmd.runMessages,
			},
			{
				Name:  "user",
				Usage: "Manage console users",
				Commands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Register a user and their handle",
						UsageText: "muster console user add <user-id> <handle>",
						Action:    cmd.runUserAdd,
					},
					{
						Name:   "ls",
						Usage:  "List users",
						Action: cmd.runUserList,
					},
				},
			},
			{
				Name:      "connect",
				Usage:     "Put a user in a voice channel",
				UsageText: "muster console connect <user-id> <voice-channel-id|name>",
				Action:    cmd.runConnect,
			},
			{
				Name:      "disconnect",
				Usage:     "Take a user out of voice",
				UsageText: "muster console disconnect <user-id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return cmd.flags.App.Console.Disconnect(ctx, c.Args().First())
				},
			},
			{
				Name:      "say",
				Usage:     "Post a message as a user",
				UsageText: "muster console say <channel-id|name> <user-id> <text...>",
				Action:    cmd.runSay,
			},
		},
	})

	return app
}

func (cmd *ConsoleCmd) runChannels(ctx context.Context, c *cli.Command) error {
	platform := cmd.flags.App.Console
	top, err := platform.ListChannels(ctx, "")
	if err != nil {
		return err
	}

	out := c.Root().Writer
	var walk func(chs []chat.Channel, depth int) error
	walk = func(chs []chat.Channel, depth int) error {
		for _, ch := range chs {
			indent := strings.Repeat("  ", depth)
			line := channelLabel(ch)
			if ch.Kind == chat.KindVoice {
				if members, err := platform.VoiceMembers(ctx, ch.ID); err == nil && len(members) > 0 {
					line += styles.MutedStyle.Render(fmt.Sprintf(" (%d connected)", len(members)))
				}
			}
			_, _ = fmt.Fprintf(out, "%s%s %s\n", indent, line, styles.MutedStyle.Render(ch.ID))

			if ch.Kind != chat.KindCategory {
				continue
			}
			children, err := platform.ListChannels(ctx, ch.ID)
			if err != nil {
				return err
			}
			if err := walk(children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(top, 0)
}

func channelLabel(ch chat.Channel) string {
	switch ch.Kind {
	case chat.KindCategory:
		return styles.CategoryStyle.Render(strings.ToUpper(ch.Name))
	case chat.KindVoice:
		return styles.ChannelStyle.Render("🔊 " + ch.Name)
	default:
		return styles.ChannelStyle.Render("#" + ch.Name)
	}
}

// findChannel resolves ref as a channel id or, failing that, the first
// channel of kind with that name anywhere in the tree.
func (cmd *ConsoleCmd) findChannel(ctx context.Context, ref string, kind chat.ChannelKind) (chat.Channel, error) {
	platform := cmd.flags.App.Console
	if ref == "" {
		return chat.Channel{}, fmt.Errorf("channel is required")
	}

	queue := []string{""}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		chs, err := platform.ListChannels(ctx, parent)
		if err != nil {
			return chat.Channel{}, err
		}
		for _, ch := range chs {
			if ch.ID == ref || (ch.Kind == kind && strings.EqualFold(ch.Name, ref)) {
				return ch, nil
			}
			if ch.Kind == chat.KindCategory {
				queue = append(queue, ch.ID)
			}
		}
	}
	return chat.Channel{}, fmt.Errorf("channel %s: %w", ref, chat.ErrNotFound)
}

func (cmd *ConsoleCmd) runMessages(ctx context.Context, c *cli.Command) error {
	ch, err := cmd.findChannel(ctx, c.Args().First(), chat.KindText)
	if err != nil {
		return err
	}
	msgs, err := cmd.flags.App.Console.Messages(ctx, ch.ID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintf(os.Stderr, "No messages in #%s\n", ch.Name)
		return nil
	}

	out := c.Root().Writer
	width := cmd.flags.Config.Console.Width
	for _, m := range msgs {
		stamp := styles.MutedStyle.Render(m.SentAt.Local().Format("02 Jan 15:04"))
		if m.Announcement != nil {
			_, _ = fmt.Fprintf(out, "%s\n%s\n", stamp, console.RenderAnnouncement(*m.Announcement, width))
			continue
		}
		_, _ = fmt.Fprintf(out, "%s %s\n", stamp, m.Text)
	}
	return nil
}

func (cmd *ConsoleCmd) runUserAdd(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <user-id> <handle>")
	}
	if err := cmd.flags.App.Console.AddUser(ctx, c.Args().Get(0), c.Args().Get(1)); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("added %s as %s", c.Args().Get(0), c.Args().Get(1))
	return nil
}

func (cmd *ConsoleCmd) runUserList(ctx context.Context, c *cli.Command) error {
	users, err := cmd.flags.App.Console.Users(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tHANDLE")
	for _, id := range ids {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", id, users[id])
	}
	return w.Flush()
}

func (cmd *ConsoleCmd) runConnect(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <user-id> <voice-channel>")
	}
	ch, err := cmd.findChannel(ctx, c.Args().Get(1), chat.KindVoice)
	if err != nil {
		return err
	}
	if err := cmd.flags.App.Console.MoveUserToChannel(ctx, c.Args().Get(0), ch.ID); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("%s connected to %s", c.Args().Get(0), ch.Name)
	return nil
}

func (cmd *ConsoleCmd) runSay(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() < 3 {
		return fmt.Errorf("expected <channel> <user-id> <text>")
	}
	ch, err := cmd.findChannel(ctx, c.Args().Get(0), chat.KindText)
	if err != nil {
		return err
	}
	_, err = cmd.flags.App.Console.Post(ctx, ch.ID, c.Args().Get(1), strings.Join(c.Args().Slice()[2:], " "))
	return err
}
