package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// OperationCompleter returns a ShellCompleteFunc that suggests live
// operation file names as positional completions.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func OperationCompleter(flags *Flags) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if completingFlag(cmd) {
			cli.DefaultCompleteWithFlags(ctx, cmd)
			return
		}
		if flags.App == nil {
			return
		}

		flags.App.Load(ctx)
		w := cmd.Root().Writer
		for _, rec := range flags.App.Manager.Live() {
			_, _ = fmt.Fprintln(w, rec.FileName())
		}
	}
}

// TemplateNameCompleter returns a ShellCompleteFunc that suggests stored
// template names.
func TemplateNameCompleter(flags *Flags) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if completingFlag(cmd) {
			cli.DefaultCompleteWithFlags(ctx, cmd)
			return
		}
		if flags.App == nil {
			return
		}

		w := cmd.Root().Writer
		for _, name := range flags.App.Manager.TemplateNames(ctx) {
			_, _ = fmt.Fprintln(w, name)
		}
	}
}

func completingFlag(cmd *cli.Command) bool {
	args := cmd.Args()
	if !args.Present() {
		return false
	}
	last := args.Slice()[args.Len()-1]
	return len(last) > 0 && last[0] == '-'
}
