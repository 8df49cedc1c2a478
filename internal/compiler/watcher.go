package compiler

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeType represents the type of file change.
type ChangeType int

const (
	ChangeScript ChangeType = iota
	ChangeStyle
	ChangeDocument
	ChangeManifest
	ChangeServiceWorker
	ChangeAsset
)

func (t ChangeType) String() string {
	switch t {
	case ChangeScript:
		return "script"
	case ChangeStyle:
		return "style"
	case ChangeDocument:
		return "document"
	case ChangeManifest:
		return "manifest"
	case ChangeServiceWorker:
		return "serviceWorker"
	case ChangeAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// Change represents a detected file change.
type Change struct {
	Path    string
	Type    ChangeType
	Removed bool
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Root is the project directory. Files directly inside it are
	// classified as manifest, service worker or document sources.
	Root string

	// Paths are the directories to watch, recursively.
	Paths []string

	// Assets is the static assets directory.
	Assets string

	// Ignore patterns to skip (globs).
	Ignore []string

	// Debounce is the quiet period before a batch is delivered.
	Debounce time.Duration
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"dist",
	".devgate",
	"*.tmp",
	"*.swp",
	"*~",
	".DS_Store",
}

// Watcher monitors a project tree and delivers debounced batches of
// changes.
type Watcher struct {
	config WatcherConfig
	fs     *fsnotify.Watcher
	log    zerolog.Logger

	mu      sync.Mutex
	watched map[string]struct{}
}

// NewWatcher creates a watcher and registers every non-ignored directory
// under config.Paths.
func NewWatcher(config WatcherConfig, log zerolog.Logger) (*Watcher, error) {
	if config.Debounce == 0 {
		config.Debounce = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:  config,
		fs:      fw,
		log:     log.With().Str("component", "watcher").Logger(),
		watched: make(map[string]struct{}),
	}

	for _, p := range config.Paths {
		if err := w.addTree(p); err != nil {
			w.log.Debug().Err(err).Str("path", p).Msg("skipping watch path")
		}
	}

	return w, nil
}

// addTree watches dir and its subdirectories.
func (w *Watcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.add(root)
	}

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		if err := w.add(p); err != nil {
			w.log.Debug().Err(err).Str("path", p).Msg("watch failed")
		}
		return nil
	})
}

func (w *Watcher) add(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[p]; ok {
		return nil
	}
	if err := w.fs.Add(p); err != nil {
		return err
	}
	w.watched[p] = struct{}{}
	return nil
}

// WatchedPaths returns the registered paths, sorted.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.watched))
	for p := range w.watched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Run delivers batches to onBatch until ctx ends or the watcher is
// closed. onBatch runs on the calling goroutine.
func (w *Watcher) Run(ctx context.Context, onBatch func([]Change)) error {
	pending := make(map[string]Change)
	timer := time.NewTimer(w.config.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			change, ok := w.handle(ev)
			if !ok {
				continue
			}
			pending[change.Path] = change
			timer.Reset(w.config.Debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]Change, 0, len(pending))
			for _, c := range pending {
				batch = append(batch, c)
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
			pending = make(map[string]Change)
			onBatch(batch)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) (Change, bool) {
	if w.shouldIgnore(ev.Name) {
		return Change{}, false
	}
	if ev.Op == fsnotify.Chmod {
		return Change{}, false
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Debug().Err(err).Str("path", ev.Name).Msg("watch failed")
			}
			return Change{}, false
		}
	}

	removed := ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
	if removed {
		w.mu.Lock()
		delete(w.watched, ev.Name)
		w.mu.Unlock()
	}

	w.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("file changed")
	return Change{
		Path:    ev.Name,
		Type:    classifyChange(w.config.Root, w.config.Assets, ev.Name),
		Removed: removed,
	}, true
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	return matchesIgnore(w.config.Ignore, fullPath)
}

func matchesIgnore(patterns []string, fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		// Direct match
		if name == pattern {
			return true
		}

		hasPathSep := strings.Contains(pattern, "/") || strings.Contains(pattern, "\\")
		hasGlob := strings.ContainsAny(pattern, "*?[")

		if hasGlob {
			if hasPathSep {
				if matched, _ := path.Match(filepath.ToSlash(pattern), normalized); matched {
					return true
				}
			} else {
				if matched, _ := filepath.Match(pattern, name); matched {
					return true
				}
			}
			continue
		}

		if hasPathSep {
			if pathMatchesSegments(normalized, filepath.ToSlash(pattern)) {
				return true
			}
			continue
		}

		if pathHasSegment(normalized, pattern) {
			return true
		}
	}

	return false
}

func pathHasSegment(path, segment string) bool {
	if segment == "" {
		return false
	}
	for _, part := range splitPathSegments(path) {
		if part == segment {
			return true
		}
	}
	return false
}

func pathMatchesSegments(path, pattern string) bool {
	pathParts := splitPathSegments(path)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}

	for i := 0; i <= len(pathParts)-len(patternParts); i++ {
		match := true
		for j := range patternParts {
			if pathParts[i+j] != patternParts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}

func splitPathSegments(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}

// classifyChange decides which artifact a changed file feeds.
func classifyChange(root, assets, p string) ChangeType {
	if assets != "" && isWithin(assets, p) {
		return ChangeAsset
	}

	name := filepath.Base(p)
	if filepath.Dir(p) == filepath.Clean(root) {
		switch name {
		case "manifest.json":
			return ChangeManifest
		case "service-worker.js", "sw.js":
			return ChangeServiceWorker
		case "index.html":
			return ChangeDocument
		}
	}

	switch strings.ToLower(filepath.Ext(p)) {
	case ".css", ".scss", ".sass", ".less":
		return ChangeStyle
	default:
		return ChangeScript
	}
}

func isWithin(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
