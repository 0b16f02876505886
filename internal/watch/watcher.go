// Package watch monitors an inbox directory for ride drops. A drop is a
// subdirectory containing the ride recordings as fixed-name CSV files; once
// the required files are all present the drop is handed to the run handler.
package watch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/ingest"
)

// Fixed file names inside a ride drop directory. Speed is optional.
const (
	FileLatitude   = "latitude.csv"
	FileLongitude  = "longitude.csv"
	FileVibration1 = "vibration1.csv"
	FileVibration2 = "vibration2.csv"
	FileSpeed      = "speed.csv"
)

// Handler processes one complete ride drop. The drop directory name serves
// as the run name.
type Handler func(ctx context.Context, name string, paths ingest.RidePaths) error

// Watcher monitors an inbox for ride drops and runs the handler on each.
type Watcher struct {
	inbox   string
	handler Handler
	// seen tracks drops already dispatched so late file events don't
	// trigger a second run.
	seen map[string]bool
}

// New creates a Watcher over inbox that calls handler for complete drops.
func New(inbox string, handler Handler) *Watcher {
	return &Watcher{inbox: inbox, handler: handler, seen: make(map[string]bool)}
}

// readyRide checks whether dir holds a complete ride drop and builds the
// paths if so. Speed is included only when present.
func readyRide(dir string) (ingest.RidePaths, bool) {
	paths := ingest.RidePaths{
		Latitude:   filepath.Join(dir, FileLatitude),
		Longitude:  filepath.Join(dir, FileLongitude),
		Vibration1: filepath.Join(dir, FileVibration1),
		Vibration2: filepath.Join(dir, FileVibration2),
	}
	for _, p := range []string{paths.Latitude, paths.Longitude, paths.Vibration1, paths.Vibration2} {
		if _, err := os.Stat(p); err != nil {
			return ingest.RidePaths{}, false
		}
	}
	speed := filepath.Join(dir, FileSpeed)
	if _, err := os.Stat(speed); err == nil {
		paths.Speed = speed
	}
	return paths, true
}

// dispatch runs the handler for dir if it is a complete, not yet seen drop.
func (w *Watcher) dispatch(ctx context.Context, dir string) {
	if w.seen[dir] {
		return
	}
	paths, ok := readyRide(dir)
	if !ok {
		return
	}
	w.seen[dir] = true

	name := filepath.Base(dir)
	zap.L().Info("watch: ride drop complete", zap.String("drop", name))
	if err := w.handler(ctx, name, paths); err != nil {
		zap.L().Error("watch: drop processing failed",
			zap.String("drop", name), zap.Error(err))
	}
}

// Backfill processes drops that already exist in the inbox. Call it before
// Run so rides dropped while the watcher was down are not missed.
func (w *Watcher) Backfill(ctx context.Context) error {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return eris.Wrapf(err, "watch: read inbox %s", w.inbox)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.dispatch(ctx, filepath.Join(w.inbox, e.Name()))
		}
	}
	return nil
}

// Run watches the inbox until ctx is cancelled. Drops are dispatched when
// the last required file appears; events for files inside known drop
// directories re-check that directory.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watch: create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(w.inbox); err != nil {
		return eris.Wrapf(err, "watch: add inbox %s", w.inbox)
	}
	zap.L().Info("watch: watching inbox", zap.String("inbox", w.inbox))

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			dir := evt.Name
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				dir = filepath.Dir(dir)
			}
			if dir == w.inbox {
				continue
			}
			// New drop directories also need watching so we see the
			// files copied into them.
			if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
				if err := watcher.Add(evt.Name); err != nil {
					zap.L().Warn("watch: add drop dir", zap.Error(err))
				}
			}
			w.dispatch(ctx, dir)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("watch: watcher error", zap.Error(err))
		}
	}
}
