// Package watcher guards the local records database file. If the candidate
// deletes the database or the whole data directory while the daemon runs,
// the guard notices and asks the owner to recreate it.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Guard watches the records database for deletion and calls onMissing when
// it disappears. fsnotify cannot watch a path that no longer exists, so the
// watch is placed on the parent data directory.
type Guard struct {
	dbPath    string
	dataDir   string
	onMissing func()
	fsw       *fsnotify.Watcher
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	running   bool
	debounce  time.Duration
}

// NewGuard creates a guard for the records database at dbPath.
func NewGuard(dbPath string, onMissing func()) (*Guard, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Guard{
		dbPath:    dbPath,
		dataDir:   filepath.Dir(dbPath),
		onMissing: onMissing,
		fsw:       fsw,
		ctx:       ctx,
		cancel:    cancel,
		debounce:  100 * time.Millisecond,
	}, nil
}

// Start begins watching. Calling Start on a running guard is a no-op.
func (g *Guard) Start() error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = true
	g.mu.Unlock()

	if err := g.watchDataDir(); err != nil {
		log.Warn().Err(err).Str("dir", g.dataDir).Msg("Records guard could not watch data directory")
	}

	go g.loop()
	return nil
}

// Stop stops the guard and releases the underlying watcher.
func (g *Guard) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return nil
	}
	g.running = false
	g.cancel()
	return g.fsw.Close()
}

func (g *Guard) watchDataDir() error {
	if _, err := os.Stat(g.dataDir); err != nil {
		return err
	}
	return g.fsw.Add(g.dataDir)
}

func (g *Guard) loop() {
	var fire *time.Timer

	for {
		select {
		case <-g.ctx.Done():
			if fire != nil {
				fire.Stop()
			}
			return

		case event, ok := <-g.fsw.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)

			switch {
			case event.Op&fsnotify.Remove != 0 && (path == filepath.Clean(g.dbPath) || path == g.dataDir):
				log.Info().Str("path", path).Msg("Records database removed")
				if fire != nil {
					fire.Stop()
				}
				// Debounced so an atomic replace (remove then create)
				// does not trigger a recreate.
				fire = time.AfterFunc(g.debounce, g.missing)

			case event.Op&fsnotify.Create != 0 && path == filepath.Clean(g.dbPath):
				if fire != nil {
					fire.Stop()
					fire = nil
				}

			case event.Op&fsnotify.Create != 0 && path == g.dataDir:
				_ = g.watchDataDir()
			}

		case err, ok := <-g.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Records guard error")
		}
	}
}

func (g *Guard) missing() {
	log.Info().Str("path", g.dbPath).Msg("Recreating records database")
	if g.onMissing != nil {
		g.onMissing()
	}

	// The data directory may have been recreated with the database, so the
	// watch has to be re-established after the dust settles.
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := g.watchDataDir(); err != nil {
			log.Warn().Err(err).Str("dir", g.dataDir).Msg("Records guard could not re-establish watch")
		}
	}()
}
