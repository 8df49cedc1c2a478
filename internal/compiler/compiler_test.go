package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []string
	errs    []error
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) OnChange(kind, variant string, state NodeState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, kind+"/"+variant)
}

func (r *recorder) kinds() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, c := range r.changes {
		out[strings.SplitN(c, "/", 2)[0]] = true
	}
	return out
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func newTestBundler(t *testing.T, dir string) *Bundler {
	t.Helper()
	b, err := NewBundler(Options{
		Dir:    dir,
		Entry:  filepath.Join(dir, "index.js"),
		Name:   "demo",
		Assets: "assets",
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestHub_OrderAndUnsubscribe(t *testing.T) {
	var h Hub
	var order []string
	mk := func(name string) Listener {
		return listenerFunc(func(kind, variant string) { order = append(order, name+":"+kind) })
	}

	h.Subscribe(mk("a"))
	unsubscribe := h.Subscribe(mk("b"))
	h.Subscribe(mk("c"))

	h.EmitChange("script", "bundle", nil)
	assert.Equal(t, []string{"a:script", "b:script", "c:script"}, order)

	unsubscribe()
	unsubscribe()
	order = nil
	h.EmitChange("style", "bundle", nil)
	assert.Equal(t, []string{"a:style", "c:style"}, order)
}

type listenerFunc func(kind, variant string)

func (f listenerFunc) OnError(error)                              {}
func (f listenerFunc) OnChange(kind, variant string, _ NodeState) { f(kind, variant) }

func TestNodeState(t *testing.T) {
	s := NodeState{"script": {"bundle": {Buffer: []byte("x")}}}

	assert.NotNil(t, s.Get("script", "bundle"))
	assert.Nil(t, s.Get("script", "chunk"))
	assert.Nil(t, s.Get("style", "bundle"))

	c := s.Clone()
	c["script"]["chunk"] = &Node{}
	assert.Nil(t, s.Get("script", "chunk"), "clone must not share variant maps")
}

func TestBundler_Build(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.js":        "import './style.css'\nimport { greet } from './lib.js'\ngreet()\nimport('./lazy.js').then(m => m.run())\n",
		"lib.js":          "export function greet() { console.log('hi') }\n",
		"lazy.js":         "import { greet } from './lib.js'\nexport function run() { greet() }\n",
		"style.css":       "body { margin: 0 }\n",
		"sw.js":           "self.addEventListener('install', () => {})\n",
		"assets/logo.txt": "logo",
	})

	b := newTestBundler(t, dir)
	rec := &recorder{}
	b.Subscribe(rec)

	ctx := context.Background()
	require.NoError(t, b.Build(ctx))

	kinds := rec.kinds()
	for _, k := range []string{KindManifest, KindAssets, KindServiceWorker, KindScript, KindStyle, KindDocument} {
		assert.True(t, kinds[k], "no change event for %s", k)
	}
	assert.Empty(t, rec.errs)

	script, err := b.Script(ctx, "bundle")
	require.NoError(t, err)
	assert.Contains(t, string(script.Buffer), "import(")
	assert.NotEmpty(t, script.Hash)

	style, err := b.Style(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(style.Buffer), "margin")

	var chunks int
	for name := range b.Nodes()[KindScript] {
		if strings.HasPrefix(name, "chunk-") {
			chunks++
		}
	}
	assert.Greater(t, chunks, 0, "shared code should be split into a chunk")

	doc, err := b.Document(ctx, "/any/route?x=1")
	require.NoError(t, err)
	assert.Contains(t, string(doc.Buffer), `<script type="module" src="/bundle.js"></script>`)
	assert.Contains(t, string(doc.Buffer), `href="/bundle.css"`)
	assert.Contains(t, string(doc.Buffer), "<title>demo</title>")

	manifest, err := b.Manifest(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(manifest.Buffer), `"start_url": "/"`)

	sw, err := b.ServiceWorker(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(sw.Buffer), "install")
	assert.Equal(t, "sw.js", b.ServiceWorkerSource())

	asset, err := b.Asset(ctx, "logo.txt")
	require.NoError(t, err)
	assert.Equal(t, "logo", string(asset.Buffer))

	_, err = b.Script(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E220")
}

func TestBundler_NoServiceWorker(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"index.js": "console.log(1)\n"})

	b := newTestBundler(t, dir)
	require.NoError(t, b.Build(context.Background()))

	sw, err := b.ServiceWorker(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sw.Buffer)

	style, err := b.Style(context.Background())
	require.NoError(t, err)
	assert.Empty(t, style.Buffer)
}

func TestBundler_BuildError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"index.js": "import missing from './missing.js'\nmissing()\n"})

	b := newTestBundler(t, dir)
	rec := &recorder{}
	b.Subscribe(rec)

	err := b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E210")
	assert.Contains(t, err.Error(), "missing.js")

	require.Len(t, rec.errs, 1)
	assert.Equal(t, err, rec.errs[0])

	var coded interface{ Trace() string }
	require.True(t, errors.As(err, &coded))
	assert.Contains(t, coded.Trace(), "index.js:1")

	_, err = b.Script(context.Background(), "bundle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E220")

	// The rest of the artifacts still build.
	_, err = b.Manifest(context.Background())
	assert.NoError(t, err)
}

func TestBundler_ProjectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.js":      "console.log(1)\n",
		"manifest.json": `{"name":"custom"}`,
		"index.html":    "<html><head><title>Mine</title></head><body><main></main></body></html>",
	})

	b := newTestBundler(t, dir)
	require.NoError(t, b.Build(context.Background()))

	manifest, _ := b.Manifest(context.Background())
	assert.Equal(t, `{"name":"custom"}`, string(manifest.Buffer))

	doc, _ := b.Document(context.Background(), "/")
	html := string(doc.Buffer)
	assert.Contains(t, html, "<title>Mine</title>")
	assert.Contains(t, html, `<link rel="manifest" href="/manifest.json">`)
	assert.Less(t, strings.Index(html, `src="/bundle.js"`), strings.Index(html, "</body>"))
	assert.NotContains(t, html, "bundle.css", "no stylesheet link without CSS")
}

func TestBundler_WaitsForFirstBuild(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"index.js": "console.log(1)\n"})
	b := newTestBundler(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Manifest(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E220")

	done := make(chan error, 1)
	go func() {
		_, err := b.Manifest(context.Background())
		done <- err
	}()
	require.NoError(t, b.Build(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("accessor did not return after the first build")
	}
}

func TestBundler_RunRebuilds(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"index.js": "console.log('one')\n"})

	b, err := NewBundler(Options{
		Dir:      dir,
		Entry:    filepath.Join(dir, "index.js"),
		Watch:    true,
		Debounce: 20 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	script, err := b.Script(ctx, "bundle")
	require.NoError(t, err)
	require.Contains(t, string(script.Buffer), "one")

	// Give the watcher a moment to register the project directory.
	time.Sleep(100 * time.Millisecond)
	writeFiles(t, dir, map[string]string{"index.js": "console.log('two')\n"})

	require.Eventually(t, func() bool {
		script, err := b.Script(ctx, "bundle")
		return err == nil && strings.Contains(string(script.Buffer), "two")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestMessagesError(t *testing.T) {
	msgs := []api.Message{{
		Text: `Could not resolve "./missng"`,
		Location: &api.Location{
			File:       "src/app.js",
			Line:       3,
			Column:     7,
			LineText:   `import x from "./missng"`,
			Suggestion: "./missing",
		},
	}}

	e := messagesError("E210", "/proj", msgs)

	assert.Equal(t, "E210", e.Code)
	assert.Equal(t, `Could not resolve "./missng"`, e.Message)
	require.NotNil(t, e.Location)
	assert.Equal(t, "src/app.js", e.Location.File)
	assert.Equal(t, 8, e.Location.Column)
	assert.Equal(t, []string{`import x from "./missng"`}, e.Context)
	assert.Equal(t, `Did you mean "./missing"?`, e.Suggestion)
}

func TestNewBundler_Validation(t *testing.T) {
	_, err := NewBundler(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E121")

	_, err = NewBundler(Options{Entry: "/x/index.js", Target: "es1999"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E211")
}

func TestParseTarget(t *testing.T) {
	for _, s := range []string{"", "es2015", "ES2020", "esnext", "es2022"} {
		_, err := parseTarget(s)
		assert.NoError(t, err, s)
	}
	_, err := parseTarget("es3")
	assert.Error(t, err)
}

func TestRenderDocument(t *testing.T) {
	data := documentData{Title: "a<b", Script: "/bundle.js", Style: "/bundle.css", HasStyle: true}

	shell := string(renderDocument(nil, data))
	assert.Contains(t, shell, "<title>a&lt;b</title>")
	assert.Contains(t, shell, `<link rel="stylesheet" href="/bundle.css">`)
	assert.True(t, strings.HasPrefix(shell, "<!DOCTYPE html>"))

	tmpl := []byte(`<HTML><HEAD></HEAD><BODY><script type="module" src="/bundle.js"></script></BODY></HTML>`)
	out := string(renderDocument(tmpl, data))
	assert.Equal(t, 1, strings.Count(out, "/bundle.js"), "existing script tag is kept")
	assert.Less(t, strings.Index(out, "/bundle.css"), strings.Index(out, "</HEAD>"))

	bare := string(renderDocument([]byte("<p>hi</p>"), data))
	assert.True(t, strings.HasPrefix(bare, "<p>hi</p>"))
	assert.Contains(t, bare, `src="/bundle.js"`)
}
