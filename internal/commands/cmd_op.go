package commands

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/muster/internal/core/chat"
	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/internal/muster"
	"github.com/colonyops/muster/internal/platform/console"
	"github.com/colonyops/muster/internal/printer"
	"github.com/colonyops/muster/pkg/iojson"
)

type OpCmd struct {
	flags *Flags

	// flags
	date       string
	jsonOutput bool
	roles      iojson.FileReader[[]roleInput]
}

// roleInput is the JSON shape accepted by "op roles".
type roleInput struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
	// Max is the capacity: -1 unlimited, 0 disabled.
	Max int `json:"max"`
}

// NewOpCmd creates a new op command.
func NewOpCmd(flags *Flags) *OpCmd {
	return &OpCmd{flags: flags}
}

// Register adds the op command to the application.
func (cmd *OpCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "op",
		Usage: "Post and manage live operations",
		Description: `Operation commands act on the live operation files shared with the server.

Operations are referenced by id, file name or, when unambiguous, name.
A running 'muster serve' picks up every change made here.`,
		Before: cmd.load,
		Commands: []*cli.Command{
			cmd.postCmd(),
			cmd.lsCmd(),
			cmd.showCmd(),
			cmd.signupCmd(),
			cmd.rmCmd(),
			cmd.editDateCmd(),
			cmd.rolesCmd(),
			cmd.autostartCmd(),
			cmd.statusCmd(),
			cmd.refreshCmd(),
			cmd.requestCmd(muster.ActionStart, "Start the operation now"),
			cmd.requestCmd(muster.ActionAlert, "Send the squad alert"),
			cmd.requestCmd(muster.ActionDebrief, "Open the debrief"),
			cmd.requestCmd(muster.ActionEnd, "End the operation and tear down its channels"),
		},
	})

	return app
}

func (cmd *OpCmd) load(ctx context.Context, _ *cli.Command) (context.Context, error) {
	cmd.flags.App.Load(ctx)
	return ctx, nil
}

func (cmd *OpCmd) postCmd() *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "Post an operation from a template",
		UsageText: "muster op post --date <date> <template> [arguments...]",
		Description: `Creates a live operation from a stored template and posts its announcement.

Arguments toggle options over the template's defaults: reserve, compact,
autostart, feedback and game (prefix with "no-" to turn one off).`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "date",
				Aliases:     []string{"d"},
				Usage:       "start time (\"2006-01-02 15:04\" local, RFC 3339 or unix seconds)",
				Required:    true,
				Destination: &cmd.date,
			},
		},
		ShellComplete: TemplateNameCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("template name is required")
			}
			date, err := parseDate(cmd.date)
			if err != nil {
				return err
			}

			rec, err := cmd.flags.App.Manager.CreateFromTemplate(ctx, c.Args().First(), date, c.Args().Tail())
			if err != nil {
				return userError("post operation", err)
			}
			printer.Ctx(ctx).Successf("posted %s (%s)", rec.Name, rec.ID)
			return nil
		},
	}
}

// operationInfo is the JSON output format for muster op ls --json.
type operationInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FileName  string    `json:"file_name"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
	Signups   int       `json:"signups"`
	Reserves  int       `json:"reserves"`
	Posted    bool      `json:"posted"`
	AutoStart bool      `json:"autostart"`
}

func (cmd *OpCmd) lsCmd() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List live operations",
		UsageText: "muster op ls [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ops := cmd.flags.App.Manager.Live()
			slices.SortFunc(ops, func(a, b *operation.Record) int { return a.Date.Compare(b.Date) })

			if len(ops) == 0 {
				if !cmd.jsonOutput {
					fmt.Fprintf(os.Stderr, "No live operations\n")
				}
				return nil
			}

			out := c.Root().Writer
			if cmd.jsonOutput {
				for _, rec := range ops {
					info := operationInfo{
						ID:        rec.ID,
						Name:      rec.Name,
						FileName:  rec.FileName(),
						Date:      rec.Date,
						Status:    rec.Status.String(),
						Signups:   rec.SignupCount(),
						Reserves:  len(rec.Reserves),
						Posted:    rec.MessageID != "",
						AutoStart: rec.Options.AutoStart,
					}
					if err := iojson.WriteLine(out, info); err != nil {
						return fmt.Errorf("encode operation: %w", err)
					}
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tDATE\tSTATUS\tSIGNUPS\tFILE")
			for _, rec := range ops {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					rec.ID, rec.Name, rec.Date.Local().Format("Mon 02 Jan 15:04"), rec.Status, rec.SignupCount(), rec.FileName())
			}
			return w.Flush()
		},
	}
}

func (cmd *OpCmd) showCmd() *cli.Command {
	return &cli.Command{
		Name:          "show",
		Usage:         "Render an operation's announcement",
		UsageText:     "muster op show <operation>",
		ShellComplete: OperationCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			rec, err := findOperation(cmd.flags.App.Manager, c.Args().First())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.Root().Writer, console.RenderAnnouncement(chat.NewAnnouncement(rec), cmd.flags.Config.Console.Width))
			return err
		},
	}
}

func (cmd *OpCmd) signupCmd() *cli.Command {
	return &cli.Command{
		Name:      "signup",
		Usage:     "Sign a user up for a role, the reserve or resign them",
		UsageText: "muster op signup <operation> <user-id> <role|reserve|resign>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 3 {
				return fmt.Errorf("expected <operation> <user-id> <target>")
			}
			mgr := cmd.flags.App.Manager
			rec, err := findOperation(mgr, c.Args().Get(0))
			if err != nil {
				return err
			}
			userID, target := c.Args().Get(1), c.Args().Get(2)

			if err := mgr.MutateSignup(ctx, rec, userID, target); err != nil {
				return userError("signup", err)
			}
			printer.Ctx(ctx).Successf("%s -> %s on %s", userID, target, rec.Name)
			return nil
		},
	}
}

func (cmd *OpCmd) rmCmd() *cli.Command {
	return &cli.Command{
		Name:          "rm",
		Usage:         "Remove a live operation and its announcement",
		UsageText:     "muster op rm <operation>",
		ShellComplete: OperationCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			rec, err := findOperation(cmd.flags.App.Manager, c.Args().First())
			if err != nil {
				return err
			}
			if !cmd.flags.App.Manager.Remove(ctx, rec) {
				return fmt.Errorf("remove %s: operation file could not be deleted", rec.Name)
			}
			printer.Ctx(ctx).Successf("removed %s", rec.Name)
			return nil
		},
	}
}

func (cmd *OpCmd) editDateCmd() *cli.Command {
	return &cli.Command{
		Name:      "edit-date",
		Usage:     "Move an operation to a new start time",
		UsageText: "muster op edit-date --date <date> <operation>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "date",
				Aliases:     []string{"d"},
				Usage:       "new start time",
				Required:    true,
				Destination: &cmd.date,
			},
		},
		ShellComplete: OperationCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			rec, err := findOperation(cmd.flags.App.Manager, c.Args().First())
			if err != nil {
				return err
			}
			date, err := parseDate(cmd.date)
			if err != nil {
				return err
			}
			if err := cmd.flags.App.Manager.EditDate(ctx, rec, date); err != nil {
				return userError("edit date", err)
			}
			printer.Ctx(ctx).Successf("%s moved to %s", rec.Name, date.Local().Format("Mon 02 Jan 15:04"))
			return nil
		},
	}
}

func (cmd *OpCmd) rolesCmd() *cli.Command {
	return &cli.Command{
		Name:      "roles",
		Usage:     "Replace an operation's roles",
		UsageText: "muster op roles <operation> [-f roles.json]",
		Description: `Reads a JSON array of roles, e.g. [{"name":"Medic","icon":"+","max":2}].

Players keep their slot when their role survives. Players that no longer fit
are moved to the reserve, newest first, or dropped when the reserve is off.`,
		Flags:         []cli.Flag{cmd.roles.Flag()},
		ShellComplete: OperationCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			rec, err := findOperation(cmd.flags.App.Manager, c.Args().First())
			if err != nil {
				return err
			}
			input, err := cmd.roles.Read()
			if err != nil {
				return err
			}

			roles := make([]operation.Role, len(input))
			for i, r := range input {
				roles[i] = operation.Role{Name: strings.TrimSpace(r.Name), Icon: r.Icon, MaxPositions: r.Max}
			}

			evictions, err := cmd.flags.App.Manager.EditRoles(ctx, rec, roles)
			if err != nil {
				return userError("edit roles", err)
			}

			p := printer.Ctx(ctx)
			p.Successf("%s now has %d role(s)", rec.Name, len(roles))
			for _, e := range evictions {
				if e.ToReserve {
					p.Warnf("%s moved from %s to reserve", e.UserID, e.Role)
				} else {
					p.Warnf("%s removed from %s", e.UserID, e.Role)
				}
			}
			return nil
		},
	}
}

func (cmd *OpCmd) autostartCmd() *cli.Command {
	return &cli.Command{
		Name:          "autostart",
		Usage:         "Turn autostart on or off",
		UsageText:     "muster op autostart <operation> <on|off>",
		ShellComplete: OperationCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			rec, err := findOperation(cmd.flags.App.Manager, c.Args().Get(0))
			if err != nil {
				return err
			}

			var enabled bool
			switch strings.ToLower(c.Args().Get(1)) {
			case "on", "true", "yes":
				enabled = true
			case "off", "false", "no":
			default:
				return fmt.Errorf("expected on or off, got %q", c.Args().Get(1))
			}

			if err := cmd.flags.App.Manager.SetAutostart(ctx, rec, enabled); err != nil {
				return userError("autostart", err)
			}
			printer.Ctx(ctx).Successf("autostart for %s: %t", rec.Name, enabled)
			return nil
		},
	}
}

func (cmd *OpCmd) statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Move an operation forward in its lifecycle",
		UsageText: "muster op status <operation> <status>",
		Description: "Statuses in order: " + strings.Join(statusNames(), ", ") + `.

Statuses only move forward.`,
		ShellComplete: OperationCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			rec, err := findOperation(cmd.flags.App.Manager, c.Args().Get(0))
			if err != nil {
				return err
			}
			status, err := operation.ParseStatus(c.Args().Get(1))
			if err != nil {
				return err
			}
			if err := cmd.flags.App.Manager.SetStatus(ctx, rec, status); err != nil {
				return userError("set status", err)
			}
			printer.Ctx(ctx).Successf("%s is %s", rec.Name, status)
			return nil
		},
	}
}

func statusNames() []string {
	var names []string
	for _, s := range operation.Statuses() {
		names = append(names, s.String())
	}
	return names
}

func (cmd *OpCmd) refreshCmd() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Re-render every announcement and repost missing ones",
		Action: func(ctx context.Context, c *cli.Command) error {
			res := cmd.flags.App.Manager.RefreshAll(ctx)
			p := printer.Ctx(ctx)
			p.Successf("%d refreshed, %d pruned", res.Refreshed, res.Pruned)
			if res.Failed > 0 {
				p.Errorf("%d failed", res.Failed)
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func (cmd *OpCmd) requestCmd(action muster.Action, usage string) *cli.Command {
	return &cli.Command{
		Name:      string(action),
		Usage:     usage,
		UsageText: fmt.Sprintf("muster op %s <operation>", action),
		Description: `Queues the request for the running server, which owns the commanders.
Requests that no server picks up within an hour expire.`,
		ShellComplete: OperationCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			rec, err := findOperation(cmd.flags.App.Manager, c.Args().First())
			if err != nil {
				return err
			}
			if _, err := cmd.flags.App.Requests.Enqueue(ctx, muster.Request{OperationID: rec.ID, Action: action}); err != nil {
				return err
			}
			printer.Ctx(ctx).Infof("%s queued for %s", action, rec.Name)
			return nil
		},
	}
}
