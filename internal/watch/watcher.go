// Package watch turns the input directory into a hotfolder: documents
// dropped in while watching are emitted for processing.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mhartmann/sortier/internal/common"
)

// Config controls the hotfolder watcher.
type Config struct {
	Root        string
	Ext         string        // document extension including the dot
	InitialScan bool          // emit files already present at startup
	Debounce    time.Duration // coalesce rapid create/write bursts
}

// Start watches the root recursively and emits paths of matching documents.
// Both channels close when the context is canceled.
func Start(ctx context.Context, cfg Config) (<-chan string, <-chan error, error) {
	if cfg.Root == "" {
		return nil, nil, common.ErrMissingConfig
	}
	ext := strings.ToLower(cfg.Ext)

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	// Watch the tree recursively; fsnotify itself is non-recursive.
	addErr := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && matches(path, ext) {
			select {
			case evCh <- path:
			default:
			}
		}
		return nil
	})
	if addErr != nil {
		_ = w.Close()
		return nil, nil, addErr
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		// pending is only ever touched from this goroutine; the debounce
		// timer signals through due instead of running its own callback.
		pending := map[string]struct{}{}
		var timer *time.Timer
		var due <-chan time.Time

		flush := func() {
			for p := range pending {
				select {
				case evCh <- p:
				default:
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-due:
				due = nil
				flush()
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					// A created directory needs its own watch. Adding a file
					// fails harmlessly.
					if err := w.Add(e.Name); err != nil {
						slog.Debug("not watching created path", "path", e.Name, "error", err)
					}
				}

				if matches(e.Name, ext) && e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					pending[e.Name] = struct{}{}
					if cfg.Debounce > 0 {
						if timer == nil {
							timer = time.NewTimer(cfg.Debounce)
						} else {
							if !timer.Stop() {
								select {
								case <-timer.C:
								default:
								}
							}
							timer.Reset(cfg.Debounce)
						}
						due = timer.C
					} else {
						flush()
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func matches(path, ext string) bool {
	return strings.ToLower(filepath.Ext(path)) == ext
}
