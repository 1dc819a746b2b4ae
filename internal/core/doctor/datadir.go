package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DataDirCheck verifies the data directory and its record folders are
// writable.
type DataDirCheck struct {
	dirs []string
}

// NewDataDirCheck creates a check over the given directories.
func NewDataDirCheck(dirs ...string) *DataDirCheck {
	return &DataDirCheck{dirs: dirs}
}

func (c *DataDirCheck) Name() string {
	return "Data Directory"
}

func (c *DataDirCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	for _, dir := range c.dirs {
		info, err := os.Stat(dir)
		switch {
		case os.IsNotExist(err):
			result.add(dir, StatusWarn, "directory does not exist yet")
			continue
		case err != nil:
			result.add(dir, StatusFail, fmt.Sprintf("inaccessible: %v", err))
			continue
		case !info.IsDir():
			result.add(dir, StatusFail, "path is not a directory")
			continue
		}

		probe, err := os.CreateTemp(dir, ".doctor-*")
		if err != nil {
			result.add(dir, StatusFail, fmt.Sprintf("not writable: %v", err))
			continue
		}
		_ = probe.Close()
		_ = os.Remove(filepath.Clean(probe.Name()))

		result.add(dir, StatusPass, "")
	}

	return result
}
