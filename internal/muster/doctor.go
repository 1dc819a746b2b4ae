package muster

import (
	"context"

	"github.com/colonyops/muster/internal/core/doctor"
)

// RunChecks loads the live operations and runs every health check against
// the installation. With autofix, checks repair what they can.
func (a *App) RunChecks(ctx context.Context, configPath string, autofix bool) []doctor.Result {
	a.Load(ctx)

	checks := []doctor.Check{
		doctor.NewConfigCheck(a.Config, configPath),
		doctor.NewDataDirCheck(a.Config.DataDir, a.Config.LiveDir(), a.Config.TemplateDir()),
		doctor.NewDatabaseCheck(a.DB.Conn()),
		doctor.NewRecordsCheck(a.Store, autofix),
		doctor.NewAutostartCheck(a.Scheduler, a.Autostart, a.Manager.Live, AutostartJobKind, autofix),
	}
	return doctor.RunAll(ctx, checks)
}
