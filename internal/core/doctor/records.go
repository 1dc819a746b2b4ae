package doctor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/colonyops/muster/internal/core/operation"
)

// RecordSource is the slice of the operation file store the records check
// needs.
type RecordSource interface {
	ListLive(ctx context.Context) []string
	ListTemplates(ctx context.Context) []string
	Load(ctx context.Context, path string) (*operation.Record, error)
	DeletePath(ctx context.Context, path string) bool
}

// RecordsCheck loads every live record and template and reports files that
// no longer decode or validate. With autofix, those files are removed. Files
// that cannot be read are reported but never removed.
type RecordsCheck struct {
	src     RecordSource
	autofix bool
}

// NewRecordsCheck creates a records check.
func NewRecordsCheck(src RecordSource, autofix bool) *RecordsCheck {
	return &RecordsCheck{src: src, autofix: autofix}
}

func (c *RecordsCheck) Name() string {
	return "Operation Files"
}

func (c *RecordsCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	c.scan(ctx, &result, "live operations", c.src.ListLive(ctx))
	c.scan(ctx, &result, "templates", c.src.ListTemplates(ctx))

	return result
}

func (c *RecordsCheck) scan(ctx context.Context, result *Result, label string, paths []string) {
	healthy := 0
	for _, path := range paths {
		rec, err := c.src.Load(ctx, path)
		if err != nil && !errors.Is(err, operation.ErrCorrupt) {
			result.add(filepath.Base(path), StatusFail, fmt.Sprintf("unreadable: %v", err))
			continue
		}
		if err == nil {
			if err = rec.Validate(); err == nil {
				healthy++
				continue
			}
		}

		item := CheckItem{
			Label:   filepath.Base(path),
			Status:  StatusFail,
			Detail:  err.Error(),
			Fixable: true,
		}
		if c.autofix && c.src.DeletePath(ctx, path) {
			item.Status = StatusWarn
			item.Detail = "removed"
			item.Fixed = true
		}
		result.Items = append(result.Items, item)
	}

	result.add(label, StatusPass, fmt.Sprintf("%d ok", healthy))
}
