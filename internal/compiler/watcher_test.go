package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcher_DeliversBatch(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "index.js"), []byte("1"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(WatcherConfig{
		Root:     tmpDir,
		Paths:    []string{tmpDir},
		Debounce: 20 * time.Millisecond,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []Change, 4)
	go w.Run(ctx, func(c []Change) { batches <- c })

	// Two writes inside the debounce window arrive as one batch.
	os.WriteFile(filepath.Join(tmpDir, "index.js"), []byte("2"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "app.css"), []byte("a{}"), 0644)

	seen := map[string]ChangeType{}
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case batch := <-batches:
			for _, c := range batch {
				seen[filepath.Base(c.Path)] = c.Type
			}
		case <-deadline:
			t.Fatalf("timed out waiting for changes, got %v", seen)
		}
	}

	if seen["index.js"] != ChangeScript {
		t.Errorf("index.js classified as %v", seen["index.js"])
	}
	if seen["app.css"] != ChangeStyle {
		t.Errorf("app.css classified as %v", seen["app.css"])
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := NewWatcher(WatcherConfig{
		Root:     tmpDir,
		Paths:    []string{tmpDir},
		Debounce: 20 * time.Millisecond,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []Change, 8)
	go w.Run(ctx, func(c []Change) { batches <- c })

	sub := filepath.Join(tmpDir, "components")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	// Wait for the new directory to be registered before writing into it.
	deadline := time.Now().Add(3 * time.Second)
	for !contains(w.WatchedPaths(), sub) {
		if time.Now().After(deadline) {
			t.Fatal("new directory was not watched")
		}
		time.Sleep(10 * time.Millisecond)
	}

	target := filepath.Join(sub, "button.js")
	os.WriteFile(target, []byte("export default 1"), 0644)

	timeout := time.After(3 * time.Second)
	for {
		select {
		case batch := <-batches:
			for _, c := range batch {
				if c.Path == target {
					return
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for change in new directory")
		}
	}
}

func TestWatcher_SkipsIgnoredDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	for _, dir := range []string{"src", "node_modules/pkg", ".git"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}

	w, err := NewWatcher(WatcherConfig{Root: tmpDir, Paths: []string{tmpDir}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}
	defer w.Close()

	watched := w.WatchedPaths()
	if !contains(watched, filepath.Join(tmpDir, "src")) {
		t.Errorf("src should be watched: %v", watched)
	}
	if contains(watched, filepath.Join(tmpDir, "node_modules")) || contains(watched, filepath.Join(tmpDir, "node_modules", "pkg")) {
		t.Errorf("node_modules should not be watched: %v", watched)
	}
	if contains(watched, filepath.Join(tmpDir, ".git")) {
		t.Errorf(".git should not be watched: %v", watched)
	}
}

func TestWatcher_Ignore(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := NewWatcher(WatcherConfig{
		Paths:  []string{tmpDir},
		Ignore: []string{"*.test.js", "vendor"},
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if !w.shouldIgnore(filepath.Join(tmpDir, "app.test.js")) {
		t.Error("Should ignore *.test.js files")
	}
	if !w.shouldIgnore(filepath.Join(tmpDir, "vendor", "lib.js")) {
		t.Error("Should ignore vendor directory")
	}
	if w.shouldIgnore(filepath.Join(tmpDir, "index.js")) {
		t.Error("Should not ignore index.js")
	}
}

func TestMatchesIgnore_Segments(t *testing.T) {
	patterns := []string{"tmp", "build/cache", "src/*.gen.js"}

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("foo", "tmp", "bar.js"), true},
		{filepath.Join("foo", "attempt.js"), false},
		{filepath.Join("app", "build", "cache", "x.js"), true},
		{filepath.Join("app", "build", "x.js"), false},
		{"src/a.gen.js", true},
		{"src/a.js", false},
	}

	for _, tt := range tests {
		if got := matchesIgnore(patterns, tt.path); got != tt.want {
			t.Errorf("matchesIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestClassifyChange(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "proj")
	assets := filepath.Join(root, "assets")

	tests := []struct {
		path string
		want ChangeType
	}{
		{filepath.Join(root, "index.js"), ChangeScript},
		{filepath.Join(root, "src", "app.tsx"), ChangeScript},
		{filepath.Join(root, "src", "data.json"), ChangeScript},
		{filepath.Join(root, "style.css"), ChangeStyle},
		{filepath.Join(root, "src", "theme.scss"), ChangeStyle},
		{filepath.Join(root, "index.html"), ChangeDocument},
		{filepath.Join(root, "manifest.json"), ChangeManifest},
		{filepath.Join(root, "sw.js"), ChangeServiceWorker},
		{filepath.Join(root, "service-worker.js"), ChangeServiceWorker},
		{filepath.Join(root, "src", "sw.js"), ChangeScript},
		{filepath.Join(assets, "logo.png"), ChangeAsset},
		{filepath.Join(assets, "fonts", "a.css"), ChangeAsset},
	}

	for _, tt := range tests {
		if got := classifyChange(root, assets, tt.path); got != tt.want {
			t.Errorf("classifyChange(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCollectWatchPaths(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "proj")

	got := CollectWatchPaths(root, filepath.Join(root, "src", "index.js"), []string{"../shared", "src/lib", ""})
	want := []string{root, filepath.Join(string(filepath.Separator), "shared")}

	if len(got) != len(want) {
		t.Fatalf("CollectWatchPaths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("path[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
