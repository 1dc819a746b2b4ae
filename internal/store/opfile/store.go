// Package opfile persists operation records as one file per record.
//
// Live records live in {liveDir}/{fileName}.bin and templates in
// {templateDir}/{name}.bin. Every read and write of a path holds an
// in-process lock for that path and a sibling .LOCK marker file. The marker
// is best effort: when another holder keeps it past the retry budget the
// operation proceeds anyway.
package opfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/pkg/keylock"
)

const (
	// Ext is the record file extension.
	Ext        = ".bin"
	lockSuffix = ".LOCK"

	defaultLockAttempts = 10
	defaultLockDelay    = 100 * time.Millisecond
)

// Store implements operation.Store on the filesystem.
type Store struct {
	liveDir     string
	templateDir string
	attempts    int
	delay       time.Duration
	locks       *keylock.Table
	logger      zerolog.Logger
}

var _ operation.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLockRetry sets how many times a held lock marker is polled and the
// delay between polls.
func WithLockRetry(attempts int, delay time.Duration) Option {
	return func(s *Store) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if delay > 0 {
			s.delay = delay
		}
	}
}

// New creates a store rooted at the given directories. The directories are
// created on first write.
func New(liveDir, templateDir string, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		liveDir:     liveDir,
		templateDir: templateDir,
		attempts:    defaultLockAttempts,
		delay:       defaultLockDelay,
		locks:       keylock.New(),
		logger:      logger.With().Str("component", "opfile").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LiveDir returns the directory holding live records.
func (s *Store) LiveDir() string { return s.liveDir }

// LivePath returns the path of the live record with the given file name.
func (s *Store) LivePath(fileName string) string {
	return filepath.Join(s.liveDir, fileName+Ext)
}

// TemplatePath returns the path of the template with the given name.
func (s *Store) TemplatePath(name string) string {
	return filepath.Join(s.templateDir, templateKey(name)+Ext)
}

// PathFor returns where rec is stored, decided by its identity.
func (s *Store) PathFor(rec *operation.Record) string {
	if rec.Identity.IsLive() {
		return s.LivePath(rec.Identity.FileName())
	}
	return s.TemplatePath(rec.Name)
}

// Save writes rec to its path, replacing any previous version atomically.
func (s *Store) Save(ctx context.Context, rec *operation.Record) bool {
	path := s.PathFor(rec)
	log := s.logger.With().Str("path", path).Logger()

	data, err := encode(rec)
	if err != nil {
		log.Error().Err(err).Msg("encode record")
		return false
	}

	release := s.acquire(ctx, path)
	defer release()

	if err := writeAtomic(path, data); err != nil {
		log.Error().Err(err).Msg("write record")
		return false
	}

	log.Debug().Str("operation", rec.Name).Msg("record saved")
	return true
}

// Load reads the record at path. Undecodable files return an error matching
// operation.ErrCorrupt; read failures, missing files included, are returned
// wrapped so callers can tell the two apart.
func (s *Store) Load(ctx context.Context, path string) (*operation.Record, error) {
	release := s.acquire(ctx, path)
	defer release()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error().Err(err).Str("path", path).Msg("read record")
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	rec, err := decode(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Str("kind", "corrupt").Msg("decode record")
		return nil, fmt.Errorf("%w: %s: %w", operation.ErrCorrupt, filepath.Base(path), err)
	}

	return rec, nil
}

// Delete removes rec's file. A file that is already gone counts as deleted.
func (s *Store) Delete(ctx context.Context, rec *operation.Record) bool {
	return s.DeletePath(ctx, s.PathFor(rec))
}

// DeletePath removes the file at path. A file that is already gone counts as
// deleted.
func (s *Store) DeletePath(ctx context.Context, path string) bool {
	release := s.acquire(ctx, path)
	defer release()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error().Err(err).Str("path", path).Msg("delete record")
		return false
	}
	return true
}

// ListLive returns the paths of all live record files, sorted.
func (s *Store) ListLive(_ context.Context) []string {
	return s.list(s.liveDir)
}

// ListTemplates returns the paths of all template files, sorted.
func (s *Store) ListTemplates(_ context.Context) []string {
	return s.list(s.templateDir)
}

func (s *Store) list(dir string) []string {
	matches, err := doublestar.Glob(os.DirFS(dir), "*"+Ext)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error().Err(err).Str("dir", dir).Msg("list records")
		}
		return nil
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(dir, m))
	}
	sort.Strings(paths)
	return paths
}

// FileNameOf returns the record key of a path: the base name without Ext.
func FileNameOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Ext)
}

func templateKey(name string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", "\x00", "")
	return r.Replace(strings.TrimSpace(name))
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
