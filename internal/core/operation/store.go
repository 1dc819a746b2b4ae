package operation

import "context"

// Store persists records. Templates are keyed by name and live records by
// their file name; the record's Identity decides which. Failures are logged
// by the implementation and reported as false.
type Store interface {
	Save(ctx context.Context, rec *Record) bool
	// Load reads the record at path. A file that exists but does not decode
	// returns an error matching ErrCorrupt; a missing file returns one
	// matching fs.ErrNotExist. Other read errors are returned as is.
	Load(ctx context.Context, path string) (*Record, error)
	// Delete removes the record's file. A missing file counts as success.
	Delete(ctx context.Context, rec *Record) bool
	DeletePath(ctx context.Context, path string) bool
	ListLive(ctx context.Context) []string
	ListTemplates(ctx context.Context) []string
	LivePath(fileName string) string
	TemplatePath(name string) string
}
