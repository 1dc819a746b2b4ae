package commands

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/internal/printer"
	"github.com/colonyops/muster/pkg/iojson"
)

type TemplateCmd struct {
	flags *Flags

	jsonOutput bool
}

// NewTemplateCmd creates a new template command.
func NewTemplateCmd(flags *Flags) *TemplateCmd {
	return &TemplateCmd{flags: flags}
}

// Register adds the template command to the application.
func (cmd *TemplateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "template",
		Aliases: []string{"tpl"},
		Usage:   "Manage operation templates",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List stored templates",
				UsageText: "muster template ls [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "output as JSON lines", Destination: &cmd.jsonOutput},
				},
				Action: cmd.runList,
			},
			{
				Name:  "import",
				Usage: "Write the templates from the config file to the template store",
				Description: `Seed templates in the config file are converted and stored. Existing
templates with the same name are overwritten.`,
				Action: cmd.runImport,
			},
			{
				Name:          "save",
				Usage:         "Save a live operation as a template",
				UsageText:     "muster template save <operation>",
				ShellComplete: OperationCompleter(cmd.flags),
				Action:        cmd.runSave,
			},
			{
				Name:          "rm",
				Usage:         "Delete a template",
				UsageText:     "muster template rm <name>",
				ShellComplete: TemplateNameCompleter(cmd.flags),
				Action:        cmd.runRemove,
			},
		},
	})

	return app
}

// templateInfo is the JSON output format for muster template ls --json.
type templateInfo struct {
	Name      string   `json:"name"`
	Roles     []string `json:"roles"`
	Channel   string   `json:"channel,omitempty"`
	ManagedBy string   `json:"managed_by,omitempty"`
	Reserve   bool     `json:"reserve"`
	AutoStart bool     `json:"autostart"`
}

func (cmd *TemplateCmd) runList(ctx context.Context, c *cli.Command) error {
	tpls := cmd.flags.App.Manager.Templates(ctx)
	slices.SortFunc(tpls, func(a, b *operation.Record) int { return strings.Compare(a.Name, b.Name) })

	if len(tpls) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No templates, run 'muster template import' to load the configured ones\n")
		}
		return nil
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		for _, t := range tpls {
			info := templateInfo{
				Name:      t.Name,
				Roles:     roleNames(t),
				Channel:   t.TargetChannel,
				ManagedBy: t.ManagedBy,
				Reserve:   t.Options.UseReserve,
				AutoStart: t.Options.AutoStart,
			}
			if err := iojson.WriteLine(out, info); err != nil {
				return fmt.Errorf("encode template: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tROLES\tCHANNEL")
	for _, t := range tpls {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, strings.Join(roleNames(t), ", "), t.TargetChannel)
	}
	return w.Flush()
}

func roleNames(rec *operation.Record) []string {
	names := make([]string, 0, len(rec.Roles))
	for _, r := range rec.Roles {
		names = append(names, r.Name)
	}
	return names
}

func (cmd *TemplateCmd) runImport(ctx context.Context, _ *cli.Command) error {
	seeds := cmd.flags.Config.Templates
	n := cmd.flags.App.Manager.ImportSeeds(ctx, seeds)

	p := printer.Ctx(ctx)
	p.Successf("imported %d of %d template(s)", n, len(seeds))
	if n < len(seeds) {
		p.Warnf("%d template(s) were invalid, see the log for details", len(seeds)-n)
	}
	return nil
}

func (cmd *TemplateCmd) runSave(ctx context.Context, c *cli.Command) error {
	app := cmd.flags.App
	app.Load(ctx)

	rec, err := findOperation(app.Manager, c.Args().First())
	if err != nil {
		return err
	}
	if !app.Manager.SaveTemplate(ctx, rec) {
		return fmt.Errorf("save template %q failed", rec.Name)
	}
	printer.Ctx(ctx).Successf("saved template %s", rec.Name)
	return nil
}

func (cmd *TemplateCmd) runRemove(ctx context.Context, c *cli.Command) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("template name is required")
	}
	if _, ok := cmd.flags.App.Manager.Template(ctx, name); !ok {
		return userError("delete template", operation.ErrTemplateNotFound)
	}
	if !cmd.flags.App.Manager.DeleteTemplate(ctx, name) {
		return fmt.Errorf("delete template %q failed", name)
	}
	printer.Ctx(ctx).Successf("deleted template %s", name)
	return nil
}
