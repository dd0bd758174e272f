package dashboard

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"airwave/internal/config"
)

// Watch reloads the broker address into config.js whenever the launcher
// config file changes, so an `airwave setup` run takes effect on the next
// page load without restarting.
func (s *Server) Watch(ctx context.Context, configPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors and Save replace the file, which drops
	// a watch set on the file itself.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		return err
	}

	target := filepath.Base(configPath)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			// Writers produce bursts of events; settle before reloading.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				s.reload(configPath)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("config watcher: %v", err)
		}
	}
}

func (s *Server) reload(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		s.log.Warn("reload config: %v", err)
		return
	}

	s.mu.Lock()
	changed := cfg.MQTTBroker != s.broker || cfg.Dashboard.WSPort != s.wsPort
	s.mu.Unlock()
	if changed {
		s.SetBroker(cfg.MQTTBroker, cfg.Dashboard.WSPort)
	}
}
