package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/gjson"

	"adtkit/pkg/cache"
)

// SettingsWatcher reloads settings.json when another process (another CLI
// run, the MCP server, an editor) rewrites it.
type SettingsWatcher struct {
	settings *cache.Service
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	mu       sync.Mutex

	debounce time.Duration
}

// NewSettingsWatcher creates a watcher on the settings directory.
func NewSettingsWatcher(settings *cache.Service) (*SettingsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and os.WriteFile replace the file.
	if err := watcher.Add(settings.ConfigDir()); err != nil {
		watcher.Close()
		return nil, err
	}
	return &SettingsWatcher{
		settings: settings,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		debounce: 300 * time.Millisecond,
	}, nil
}

// Start runs the watch loop until ctx is done or Stop is called.
func (w *SettingsWatcher) Start(ctx context.Context) {
	LogInfo("settings_watcher").Str("path", w.settings.SettingsPath()).Msg("Started watching settings")
	go w.watch(ctx)
}

// Stop stops watching
func (w *SettingsWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		close(w.stopCh)
		w.watcher.Close()
		w.watcher = nil
		LogInfo("settings_watcher").Msg("Stopped watching settings")
	}
}

func (w *SettingsWatcher) watch(ctx context.Context) {
	var debounceTimer *time.Timer
	target := filepath.Clean(w.settings.SettingsPath())

	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			w.Stop()
			return
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			LogError("settings_watcher").Err(err).Msg("Watcher error")
		}
	}
}

// reload merges the on-disk settings into memory. Fields missing from the
// file keep their current value.
func (w *SettingsWatcher) reload() {
	data, err := os.ReadFile(w.settings.SettingsPath())
	if err != nil {
		LogDebug("settings_watcher").Err(err).Msg("settings file unreadable")
		return
	}
	if !gjson.ValidBytes(data) {
		LogWarn("settings_watcher").Msg("ignoring malformed settings.json")
		return
	}
	applySettingsJSON(w.settings, data)
	LogDebug("settings_watcher").Msg("settings reloaded")
}

func applySettingsJSON(settings *cache.Service, data []byte) {
	doc := gjson.ParseBytes(data)
	settings.Update(func(st *cache.Settings) {
		if v := doc.Get("pinnedSerial"); v.Exists() {
			st.PinnedSerial = v.String()
		}
		if v := doc.Get("targetPackage"); v.Exists() {
			st.TargetPackage = v.String()
		}
		if v := doc.Get("lastProxyHost"); v.Exists() {
			st.LastProxyHost = v.String()
		}
		if v := doc.Get("lastProxyPort"); v.Exists() {
			st.LastProxyPort = int(v.Int())
		}
		if v := doc.Get("capturePort"); v.Exists() {
			st.CapturePort = int(v.Int())
		}
		if v := doc.Get("lastActive"); v.IsObject() {
			v.ForEach(func(key, value gjson.Result) bool {
				if ts := value.Int(); ts > st.LastActive[key.String()] {
					st.LastActive[key.String()] = ts
				}
				return true
			})
		}
	})
}
