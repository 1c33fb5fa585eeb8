package adapters

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultSeedDebounce is how long the watcher waits for a burst of file
// events to settle before reloading.
const DefaultSeedDebounce = 500 * time.Millisecond

// SeedWatcher calls reload whenever a seed file under its directory
// changes. Bursts of events collapse into one reload.
type SeedWatcher struct {
	dir      string
	reload   func(ctx context.Context) error
	debounce time.Duration

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewSeedWatcher(dir string, debounce time.Duration, reload func(ctx context.Context) error) (*SeedWatcher, error) {
	if reload == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("seed watcher needs a reload function")
	}
	if debounce <= 0 {
		debounce = DefaultSeedDebounce
	}
	return &SeedWatcher{dir: dir, reload: reload, debounce: debounce, stopCh: make(chan struct{})}, nil
}

// Start watches dir and every non-hidden directory below it.
func (w *SeedWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create seed watcher").
			WithCause(err)
	}
	err = filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		watcher.Close()
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to watch seed directory " + w.dir).
			WithCause(err)
	}
	w.watcher = watcher

	w.wg.Add(1)
	go w.run(ctx)
	log.Ctx(ctx).Info().Str("dir", w.dir).Msg("watching seed directory")
	return nil
}

func (w *SeedWatcher) run(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				w.watchNewDir(ctx, event.Name)
			}
			if !isSeedFile(event.Name) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Ctx(ctx).Warn().Err(err).Str("dir", w.dir).Msg("seed watcher error")
		case <-fire:
			fire = nil
			if err := w.reload(ctx); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("dir", w.dir).Msg("seed reload failed")
				continue
			}
			log.Ctx(ctx).Info().Str("dir", w.dir).Msg("seed reloaded")
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

func (w *SeedWatcher) watchNewDir(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || strings.HasPrefix(info.Name(), ".") {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("failed to watch new seed directory")
	}
}

// Stop ends the watch loop and releases the underlying watcher.
func (w *SeedWatcher) Stop() error {
	select {
	case <-w.stopCh:
		return nil
	default:
		close(w.stopCh)
	}
	w.wg.Wait()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
