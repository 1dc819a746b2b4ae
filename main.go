package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/muster/internal/commands"
	"github.com/colonyops/muster/internal/core/config"
	"github.com/colonyops/muster/internal/core/logging"
	"github.com/colonyops/muster/internal/core/styles"
	"github.com/colonyops/muster/internal/data/db"
	"github.com/colonyops/muster/internal/data/stores"
	"github.com/colonyops/muster/internal/muster"
	"github.com/colonyops/muster/internal/printer"
	"github.com/colonyops/muster/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		database  *db.DB
		busCancel context.CancelFunc
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "muster",
		Usage:     "Schedule and run multiplayer game operations",
		UsageText: "muster [global options] command [command options]",
		Description: `Muster posts signup announcements for scheduled game operations, keeps the
rosters, and runs each operation from warm-up to debrief.

Run 'muster serve' to start the bot. Every other command works on the same
data and can be used while the bot runs.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("MUSTER_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/muster.log)",
				Sources:     cli.EnvVars("MUSTER_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("MUSTER_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("MUSTER_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "muster.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			// Apply configured theme (validation ensures name is valid)
			palette, _ := styles.GetPalette(cfg.Console.Theme)
			styles.SetTheme(palette)

			dbOpts := db.OpenOptions{
				MaxOpenConns: cfg.Database.MaxOpenConns,
				MaxIdleConns: cfg.Database.MaxIdleConns,
				BusyTimeout:  cfg.Database.BusyTimeout,
			}
			database, err = db.Open(cfg.DataDir, dbOpts)
			if err != nil {
				if !stores.IsCorruptionError(err) {
					return ctx, fmt.Errorf("open database: %w", err)
				}
				log.Warn().Err(err).Msg("database corrupt, starting fresh")
				if rerr := stores.RecoverFromCorruption(cfg.DataDir); rerr != nil {
					return ctx, fmt.Errorf("recover database: %w", rerr)
				}
				if database, err = db.Open(cfg.DataDir, dbOpts); err != nil {
					return ctx, fmt.Errorf("open database: %w", err)
				}
			}

			flags.App = muster.NewApp(cfg, database, os.Stdout, log.Logger)

			busCtx, cancel := context.WithCancel(context.Background())
			busCancel = cancel
			flags.App.Start(busCtx)

			return printer.NewContext(ctx, printer.New(os.Stdout)), nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if busCancel != nil {
				busCancel()
				flags.App.Stop()
			}

			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewServeCmd(flags).Register(app)
	app = commands.NewOpCmd(flags).Register(app)
	app = commands.NewTemplateCmd(flags).Register(app)
	app = commands.NewScheduleCmd(flags).Register(app)
	app = commands.NewFeedbackCmd(flags).Register(app)
	app = commands.NewNotificationsCmd(flags).Register(app)
	app = commands.NewConsoleCmd(flags).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)

	app.EnableShellCompletion = true

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
