package opfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// acquire takes the in-process lock for path, then the marker file. The
// returned func releases both; the marker is only removed if this call
// created it.
func (s *Store) acquire(ctx context.Context, path string) func() {
	unlock := s.locks.Lock(path)

	marker := path + lockSuffix
	created := s.createMarker(ctx, marker)

	return func() {
		if created {
			if err := os.Remove(marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn().Err(err).Str("marker", marker).Msg("remove lock marker")
			}
		}
		unlock()
	}
}

// createMarker polls for the marker file up to the retry budget. It returns
// false when the budget runs out or the marker cannot be created, in which
// case the caller proceeds without it.
func (s *Store) createMarker(ctx context.Context, marker string) bool {
	if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
		s.logger.Warn().Err(err).Str("marker", marker).Msg("create lock dir")
		return false
	}

	for attempt := 0; attempt < s.attempts; attempt++ {
		f, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return true
		}
		if !errors.Is(err, fs.ErrExist) {
			s.logger.Warn().Err(err).Str("marker", marker).Msg("create lock marker")
			return false
		}

		if attempt == s.attempts-1 {
			break
		}

		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}

	s.logger.Warn().
		Str("marker", marker).
		Int("attempts", s.attempts).
		Msg("lock marker still held, proceeding without it")
	return false
}
