package monitoring

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher reports changes to the model artifact on disk. The loaded
// model is never replaced; the watcher only tells the operator that the
// running process is serving a stale copy until restarted.
type ArtifactWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	// OnChange, if set, is called for every event that touches the artifact.
	OnChange func(fsnotify.Event)
}

// NewArtifactWatcher starts watching the directory containing path, so that
// atomic replace-by-rename is seen as well as in-place writes.
func NewArtifactWatcher(path string, logger *zap.Logger) (*ArtifactWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &ArtifactWatcher{path: abs, watcher: w, logger: logger}, nil
}

// Run blocks until ctx is cancelled.
func (aw *ArtifactWatcher) Run(ctx context.Context) {
	defer aw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-aw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != aw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			aw.logger.Warn("model artifact changed on disk; restart to serve the new model",
				zap.String("path", aw.path),
				zap.String("op", event.Op.String()))
			if aw.OnChange != nil {
				aw.OnChange(event)
			}
		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return
			}
			aw.logger.Error("artifact watcher error", zap.Error(err))
		}
	}
}
