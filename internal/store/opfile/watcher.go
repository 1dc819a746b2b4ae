package opfile

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	changeBufferSize = 64
	defaultDebounce  = 200 * time.Millisecond
)

// Change reports a record file written or removed by anyone, this process
// included.
type Change struct {
	FileName string
	Removed  bool
}

// Watcher reports changes to record files in a directory. Bursts of events
// for the same file are folded into one Change per debounce window.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	changes  chan Change
	debounce time.Duration
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher starts watching dir. The directory is created if it doesn't
// exist.
func NewWatcher(dir string, logger zerolog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:      dir,
		watcher:  fw,
		changes:  make(chan Change, changeBufferSize),
		debounce: defaultDebounce,
		logger:   logger.With().Str("component", "opfile-watcher").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Changes delivers debounced changes. The channel is closed by Close.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	close(w.changes)
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name, relevant := w.recordName(event)
			if !relevant {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(w.debounce)
			}
			pending[name] = true
		case <-timer.C:
			w.flush(pending)
			pending = make(map[string]bool)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) recordName(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}

	base := filepath.Base(event.Name)
	if !strings.HasSuffix(base, Ext) {
		return "", false
	}
	return FileNameOf(base), true
}

// flush reports each pending file once. Whether a file was removed is
// decided by its presence at flush time, so an atomic replace never looks
// like a removal.
func (w *Watcher) flush(pending map[string]bool) {
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		_, err := os.Stat(filepath.Join(w.dir, name+Ext))
		change := Change{FileName: name, Removed: os.IsNotExist(err)}

		select {
		case w.changes <- change:
		case <-w.ctx.Done():
			return
		default:
			w.logger.Warn().Str("file", name).Msg("change dropped: buffer full")
		}
	}
}
