package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/internal/muster"
)

// dateLayouts are tried in order by parseDate. Layouts without a zone are
// read in the local time zone.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// parseDate reads a date given as one of dateLayouts or as unix seconds.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, use \"2006-01-02 15:04\" or RFC 3339", s)
}

// findOperation resolves ref against the live registry by local ID, file
// name or, when unambiguous, operation name.
func findOperation(mgr *muster.OperationManager, ref string) (*operation.Record, error) {
	if rec, ok := mgr.Get(ref); ok {
		return rec, nil
	}
	if rec, ok := mgr.ByFileName(ref); ok {
		return rec, nil
	}

	var matches []*operation.Record
	for _, rec := range mgr.Live() {
		if strings.EqualFold(rec.Name, ref) {
			matches = append(matches, rec)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", operation.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%d operations are named %q, use the id or file name", len(matches), ref)
	}
}

// userError turns validation errors into the message shown to the person
// who triggered them. Other errors are wrapped as is.
func userError(action string, err error) error {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return fmt.Errorf("%s: %s", action, operation.UserMessage(err))
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

var validationErrors = []error{
	operation.ErrNotFound,
	operation.ErrRoleNotFound,
	operation.ErrRoleHidden,
	operation.ErrRoleFull,
	operation.ErrAlreadySignedUp,
	operation.ErrNotSignedUp,
	operation.ErrReserveDisabled,
	operation.ErrSignupsClosed,
	operation.ErrPastDate,
	operation.ErrNotEditable,
	operation.ErrInvalidName,
	operation.ErrDuplicateRole,
	operation.ErrTemplateNotFound,
	operation.ErrInvalidStatus,
	operation.ErrDuplicate,
}
