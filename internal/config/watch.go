package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher reloads the configuration file when it changes on disk and hands the
// re-validated result to a callback. Invalid edits are logged and ignored so the
// running process keeps its last good configuration.
type Watcher struct {
	v        *viper.Viper
	onChange func(*Config)
}

// Watch loads configPath and starts watching it. The returned Config is the initial
// configuration; onChange receives every later valid revision.
func Watch(configPath string, onChange func(*Config)) (*Config, *Watcher, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}

	w := &Watcher{v: v, onChange: onChange}
	if v.ConfigFileUsed() == "" {
		// Nothing on disk to watch; env-only deployments restart to reconfigure.
		return cfg, w, nil
	}

	v.OnConfigChange(w.handle)
	v.WatchConfig()
	return cfg, w, nil
}

func (w *Watcher) handle(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	cfg, err := decode(w.v)
	if err != nil {
		slog.Warn("ignoring invalid configuration change", "file", e.Name, "error", err)
		return
	}
	slog.Info("configuration reloaded", "file", e.Name)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
