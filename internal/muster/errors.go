package muster

import "errors"

var (
	// ErrNotPosted is returned when an announcement could not be sent. The
	// record is left unposted.
	ErrNotPosted = errors.New("announcement could not be posted")
	// ErrNotPersisted is returned when a change could not be written to the
	// store. The in-memory record is rolled back.
	ErrNotPersisted = errors.New("operation could not be saved")
	// ErrNotPostable is returned for schedule entries without a template or
	// a valid date.
	ErrNotPostable = errors.New("schedule entry is not postable")
)
