// Package watcher monitors the source tree and re-runs generation when a
// directive-relevant file changes. The tree-sitter index is the gatekeeper:
// edits to files without directives never trigger a pass.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/reactiveui/modelgen/internal/modelgen/config"
	"github.com/reactiveui/modelgen/internal/modelgen/index"
)

// Watcher monitors the filesystem for changes and triggers regeneration.
// It uses fsnotify to detect file creation, modification, and deletion.
type Watcher struct {
	watcher *fsnotify.Watcher
	idx     *index.Index
	config  *config.Config

	// regenerate runs one pipeline pass; the watcher debounces nothing
	// itself, passes are cheap relative to editor save frequency.
	regenerate func(ctx context.Context)
}

// NewWatcher initializes a new Watcher for the specified root directory.
// It recursively adds all subdirectories to the watch list, excluding those
// ignored by config.
func NewWatcher(rootDir string, idx *index.Index, cfg *config.Config, regenerate func(ctx context.Context)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:    fw,
		idx:        idx,
		config:     cfg,
		regenerate: regenerate,
	}

	if err := w.addRecursive(rootDir); err != nil {
		fw.Close()
		return nil, err
	}

	return w, nil
}

// Start begins the event loop for monitoring file changes.
// It runs until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(ctx, event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Println("Watcher error:", err)
			}
		}
	}()
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			w.watcher.Add(event.Name)
			w.addRecursive(event.Name)
			return
		}
		w.fileChanged(ctx, event.Name)
	} else if event.Has(fsnotify.Write) {
		w.fileChanged(ctx, event.Name)
	} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if w.idx.HasDirectives(event.Name) {
			w.idx.Forget(event.Name)
			w.regenerate(ctx)
		} else {
			w.idx.Forget(event.Name)
		}
	}
}

// fileChanged rescans one file and regenerates when the file carries
// directives now or did before the edit (a removed directive also changes
// the output).
func (w *Watcher) fileChanged(ctx context.Context, path string) {
	if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_modelgen.go") {
		return
	}
	had := w.idx.HasDirectives(path)
	if err := w.idx.ScanFile(ctx, path); err != nil {
		log.Printf("Failed to scan file %s: %v", path, err)
		return
	}
	if had || w.idx.HasDirectives(path) {
		w.regenerate(ctx)
	}
}

func (w *Watcher) addRecursive(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if w.shouldIgnore(p) {
				return filepath.SkipDir
			}
			return w.watcher.Add(p)
		}
		return nil
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, excl := range w.config.ExcludedDirs {
		if strings.Contains(path, excl) || base == excl {
			return true
		}
	}
	// Always ignore the cache dir and VCS metadata.
	if base == ".git" || base == ".modelgen" || strings.Contains(path, "/.modelgen/") {
		return true
	}
	return false
}
