package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/historia-labs/historia-indexing/internal/logger"
)

// Watch blocks, applying filesystem changes to the corpus until the
// context is cancelled. Created and modified files are re-ingested and
// re-marked for embedding; removed and renamed files are dropped from
// the corpus and the index. New subdirectories are added to the watch
// set as they appear.
func (i *Ingestor) Watch(ctx context.Context) error {
	if err := i.Validate(ctx); err != nil {
		return err
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return fmt.Errorf("ingestor is closed")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		i.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	i.watcher = watcher
	i.mu.Unlock()

	if err := addRecursive(watcher, i.root); err != nil {
		watcher.Close()
		return err
	}

	logger.Info("watching %s", i.root)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			i.handleEvent(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// handleEvent maps one fsnotify event onto a corpus operation. Hidden
// paths and unrecognised extensions are ignored, matching Ingest.
func (i *Ingestor) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if isHidden(name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := addRecursive(watcher, event.Name); err != nil {
				logger.Warn("watch %s: %v", event.Name, err)
			}
			return
		}
		if !isTextFile(name) {
			return
		}
		if err := i.ingestFile(ctx, event.Name); err != nil {
			logger.Warn("ingest %s: %v", event.Name, err)
		}
	case event.Op.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() || !isTextFile(name) {
			return
		}
		if err := i.ingestFile(ctx, event.Name); err != nil {
			logger.Warn("ingest %s: %v", event.Name, err)
		}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if !isTextFile(name) {
			return
		}
		if err := i.removeFile(ctx, event.Name); err != nil {
			logger.Warn("remove %s: %v", event.Name, err)
		}
	}
}

// addRecursive registers a directory and all non-hidden subdirectories
// with the watcher. fsnotify watches are not recursive on their own.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
