package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher watches config.yml for changes and reloads it between passes,
// the way the continuous-monitoring collaborator wants its scan interval
// and capacities picked up without a restart — a feature SPEC_FULL.md
// supplements beyond spec.md's own silence on config reloading, grounded
// on gravwell-gravwell's use of fsnotify for its ingest pipeline's own
// config watching.
type Watcher struct {
	appConfig *AppConfig
	watcher   *fsnotify.Watcher
	Reloaded  chan *UserConfig
	errs      chan error
	done      chan struct{}
}

// NewWatcher starts watching appConfig's config file. Callers should
// range over Reloaded between passes and swap in the new UserConfig;
// Close stops the watch.
func NewWatcher(appConfig *AppConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(appConfig.ConfigDir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		appConfig: appConfig,
		watcher:   fsw,
		Reloaded:  make(chan *UserConfig, 1),
		errs:      make(chan error, 1),
		done:      make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.appConfig.ConfigFilename() {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			cfg, err := loadUserConfigWithDefaults(w.appConfig.ConfigDir)
			if err != nil {
				select {
				case w.errs <- err:
				default:
				}
				continue
			}
			select {
			case w.Reloaded <- cfg:
			default:
				// a reload is already pending; the continuous loop will
				// pick up this file's latest state on its next tick since
				// loadUserConfigWithDefaults re-reads from disk each time.
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Errors surfaces reload failures; best-effort, matching spec.md §7's
// "recoverable, downgraded" treatment of non-core failures.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watch. It closes the underlying fsnotify watcher first
// and waits for run to observe that and return before closing Reloaded,
// so a config write racing shutdown can never send on a closed channel.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	close(w.Reloaded)
	return err
}
