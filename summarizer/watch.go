package summarizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// settle is how long a change must stay quiet before a re-run, so that an
// editor writing several files triggers one run.
const settle = 100 * time.Millisecond

// Watch calls run once, then again after every change to a Go file under
// paths, until ctx is done.
func (e *Engine) Watch(ctx context.Context, paths []string, run func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, path := range paths {
		if err := addWatch(watcher, path); err != nil {
			return fmt.Errorf("error adding %s to watcher: %w", path, err)
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			e.logger.Info("Change detected", zap.String("file", event.Name))
			drain(ctx, watcher)
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("Watch error", zap.Error(err))
		}
	}
}

func addWatch(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(path))
	}
	return filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return strings.HasSuffix(event.Name, ".go") || strings.HasSuffix(event.Name, ".mod")
}

// drain swallows the events that arrive until the sources settle.
func drain(ctx context.Context, watcher *fsnotify.Watcher) {
	timer := time.NewTimer(settle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case _, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(settle)
		}
	}
}
