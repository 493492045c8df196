package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/shift/systemd-status-leds/led"
	"github.com/shift/systemd-status-leds/util"
)

// Watcher follows the configuration file and publishes a fresh colour
// resolver whenever the file changes and still validates. Only the
// colour mappings take effect at runtime; the service list, strip
// geometry and hardware settings need a restart.
type Watcher struct {
	path     string
	resolver *util.AtomicEvent[*led.Resolver]
	fsw      *fsnotify.Watcher
	stop     chan struct{}
	done     chan struct{}
}

// NewWatcher starts watching path. The initial resolver is published
// immediately so consumers always find a value.
func NewWatcher(path string, initial *led.Resolver) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors replace the file and
	// the watch would be lost on the first write otherwise.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		resolver: util.NewAtomicEvent[*led.Resolver](),
		fsw:      fsw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	w.resolver.Send(initial)
	go w.run()
	return w, nil
}

// Resolver returns the latest-value event the router reads the current
// resolver from.
func (w *Watcher) Resolver() *util.AtomicEvent[*led.Resolver] {
	return w.resolver
}

// Stop ends the watch goroutine and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) run() {
	defer close(w.done)
	defer w.fsw.Close()
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// Keep the last good mapping, a broken edit must not black
		// out the strip.
		slog.Warn("Ignoring invalid config change", "file", w.path, "error", err)
		return
	}
	slog.Info("Reloaded colour mappings", "file", w.path)
	w.resolver.Send(cfg.Resolver())
}
