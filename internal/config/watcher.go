package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce coalesces the burst of events an editor save produces.
const DefaultReloadDebounce = 200 * time.Millisecond

// FileWatcher reloads the deployment file when it changes on disk.
// The parent directory is watched so atomic-rename saves are seen.
type FileWatcher struct {
	path     string
	debounce time.Duration
	onReload func(*FileConfig, error)

	watcher *fsnotify.Watcher

	mu     sync.Mutex
	timer  *time.Timer
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewFileWatcher starts watching path. onReload receives the newly parsed
// file, or the error that made it unusable.
func NewFileWatcher(path string, debounce time.Duration, onReload func(*FileConfig, error)) (*FileWatcher, error) {
	if onReload == nil {
		panic("config: NewFileWatcher requires non-nil onReload")
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}
	fw := &FileWatcher{
		path:     abs,
		debounce: debounce,
		onReload: onReload,
		watcher:  w,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

func (fw *FileWatcher) loop() {
	defer close(fw.doneCh)
	for {
		select {
		case <-fw.stopCh:
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			fw.schedule()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watcher error: %v", err)
		}
	}
}

func (fw *FileWatcher) schedule() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fw.reload)
}

func (fw *FileWatcher) reload() {
	select {
	case <-fw.stopCh:
		return
	default:
	}
	cfg, err := LoadFileConfig(fw.path)
	fw.onReload(cfg, err)
}

// Stop stops watching. Pending reloads are dropped.
func (fw *FileWatcher) Stop() error {
	select {
	case <-fw.stopCh:
		return nil
	default:
	}
	close(fw.stopCh)
	err := fw.watcher.Close()
	<-fw.doneCh
	fw.mu.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.mu.Unlock()
	return err
}
