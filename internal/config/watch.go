package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchBusiness loads the business file, calls onUpdate with it, and then
// polls the file's modification time every interval until ctx is done.
//
// A changed file that fails to load or validate is logged and skipped; the
// last good configuration stays in effect. The change is still recorded as
// seen, so the broken file is not re-read on every tick: it is tried again
// only after its modification time moves forward once more.
func WatchBusiness(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*BusinessFile)) error {
	if path == "" {
		path = DefaultBusinessPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "config_watch").Str("path", path).Logger()
	}

	w := &businessWatcher{path: path, logger: l, onUpdate: onUpdate}
	if err := w.init(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
	return nil
}

type businessWatcher struct {
	path     string
	seen     time.Time
	logger   zerolog.Logger
	onUpdate func(*BusinessFile)
}

// init performs the first load; unlike later reloads it fails hard.
func (w *businessWatcher) init() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	cfg, err := LoadBusinessConfig(w.path)
	if err != nil {
		return err
	}
	w.seen = info.ModTime()
	w.apply(cfg)
	return nil
}

// poll reloads the file when its modification time is newer than the last
// one seen. It reports whether onUpdate was called.
func (w *businessWatcher) poll() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Debug().Err(err).Msg("stat business config")
		return false
	}
	if !info.ModTime().After(w.seen) {
		return false
	}
	w.seen = info.ModTime()

	cfg, err := LoadBusinessConfig(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("business config changed but is invalid, keeping previous")
		return false
	}
	w.logger.Info().Int("businesses", len(cfg.Businesses)).Msg("business config reloaded")
	w.apply(cfg)
	return true
}

func (w *businessWatcher) apply(cfg *BusinessFile) {
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}
