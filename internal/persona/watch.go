package persona

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch reloads the persona whenever its file is written or replaced, until
// ctx is done. It returns immediately for the built-in persona.
func (p *Persona) Watch(ctx context.Context) error {
	if p.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch persona dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(p.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := p.Reload(); err != nil {
					log.Warn().Err(err).Str("component", "persona").Msg("persona reload failed")
					continue
				}
				log.Info().Str("component", "persona").Str("path", p.path).Msg("persona reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("component", "persona").Msg("watcher error")
			}
		}
	}()
	return nil
}
