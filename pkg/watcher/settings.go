package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/vanderheijden86/mapdiff/pkg/config"
	"github.com/vanderheijden86/mapdiff/pkg/debug"
)

// WatchSettings starts a watcher on the config file at path that reloads it
// after every change and hands the new settings to apply. A file that
// fails to load is reported to onError and the previous settings stay in
// effect. The returned watcher is already started.
func WatchSettings(ctx context.Context, path string, window time.Duration, apply func(config.Settings), onError func(error)) (*Watcher, error) {
	if onError == nil {
		onError = func(err error) { debug.Log("watcher: settings: %v", err) }
	}
	reload := func() {
		cfg, err := config.LoadFrom(path)
		if err != nil {
			onError(fmt.Errorf("reloading settings: %w", err))
			return
		}
		debug.Log("watcher: settings reloaded from %s", path)
		apply(cfg.Settings())
	}

	w, err := NewWatcher(path,
		WithDebounceDuration(window),
		WithOnChange(reload),
		WithOnError(onError),
	)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
