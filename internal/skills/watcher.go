package skills

import (
	"github.com/fsnotify/fsnotify"
	"github.com/vinayprograms/agentkit/logging"
)

// Watcher reloads the catalog when skill files change on disk, so a
// long-running session picks up edits without a restart.
type Watcher struct {
	catalog *Catalog
	fsw     *fsnotify.Watcher
	logger  *logging.Logger
	done    chan struct{}
}

// Watch starts watching the catalog's directories. Close releases the
// watcher.
func Watch(catalog *Catalog) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range catalog.paths {
		// Missing directories are skipped; they may appear later but
		// watching them is not worth polling for.
		_ = fsw.Add(dir)
	}

	w := &Watcher{
		catalog: catalog,
		fsw:     fsw,
		logger:  logging.New().WithComponent("skills"),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.catalog.Reload(); err != nil {
				w.logger.Warn("skill reload failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			w.logger.Debug("skill catalog reloaded", map[string]interface{}{"trigger": event.Name})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("skill watcher error", map[string]interface{}{"error": err.Error()})
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
