package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"

	"github.com/vango-dev/devgate/internal/errors"
)

// Options configures a Bundler.
type Options struct {
	// Dir is the project directory.
	Dir string

	// Entry is the JavaScript entry file.
	Entry string

	// Name is the application name used in the generated manifest and
	// document.
	Name string

	// Assets is the static assets directory.
	Assets string

	// Minify enables whitespace, identifier and syntax minification.
	Minify bool

	// SourceMaps enables inline source maps.
	SourceMaps bool

	// Target is the JavaScript language target (e.g. "es2020").
	Target string

	// Watch enables rebuilding on file changes in Run.
	Watch bool

	// WatchPaths are extra paths watched in addition to Dir.
	WatchPaths []string

	// Ignore contains watcher ignore patterns.
	Ignore []string

	// Debounce is the watcher quiet period.
	Debounce time.Duration

	// Logger receives build diagnostics.
	Logger zerolog.Logger
}

// Bundler is an esbuild backed Compiler. It builds the entry as ES modules
// with code splitting: the entry becomes bundle.js, shared code lands in
// chunk scripts and imported CSS in bundle.css.
type Bundler struct {
	opts   Options
	outdir string
	hub    Hub
	log    zerolog.Logger

	main api.BuildContext

	mu       sync.RWMutex
	nodes    NodeState
	swSource string
	lastErr  error

	ready     chan struct{}
	readyOnce sync.Once
}

var _ Compiler = (*Bundler)(nil)

// NewBundler creates a bundler for opts.Entry.
func NewBundler(opts Options) (*Bundler, error) {
	if opts.Entry == "" {
		return nil, errors.New("E121")
	}
	if opts.Dir == "" {
		opts.Dir = filepath.Dir(opts.Entry)
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(opts.Dir)
	}

	target, err := parseTarget(opts.Target)
	if err != nil {
		return nil, err
	}

	b := &Bundler{
		opts:   opts,
		outdir: filepath.Join(opts.Dir, ".devgate"),
		log:    opts.Logger.With().Str("component", "compiler").Logger(),
		nodes:  make(NodeState),
		ready:  make(chan struct{}),
	}

	buildOpts := api.BuildOptions{
		EntryPointsAdvanced: []api.EntryPoint{
			{InputPath: opts.Entry, OutputPath: VariantBundle},
		},
		AbsWorkingDir:     opts.Dir,
		Outdir:            b.outdir,
		Bundle:            true,
		Write:             false,
		Splitting:         true,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Target:            target,
		ChunkNames:        "chunk-[hash]",
		AssetNames:        "assets/[name]-[hash]",
		PublicPath:        "/",
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		LogLevel:          api.LogLevelSilent,
		Loader: map[string]api.Loader{
			".png":   api.LoaderFile,
			".jpg":   api.LoaderFile,
			".jpeg":  api.LoaderFile,
			".gif":   api.LoaderFile,
			".svg":   api.LoaderFile,
			".webp":  api.LoaderFile,
			".woff":  api.LoaderFile,
			".woff2": api.LoaderFile,
		},
	}
	if opts.SourceMaps {
		buildOpts.Sourcemap = api.SourceMapInline
	}

	ctx, ctxErr := api.Context(buildOpts)
	if ctxErr != nil {
		e := errors.New("E211")
		if len(ctxErr.Errors) > 0 {
			e = messagesError("E211", opts.Dir, ctxErr.Errors)
		}
		return nil, e
	}
	b.main = ctx

	return b, nil
}

// Subscribe registers l for change and error events.
func (b *Bundler) Subscribe(l Listener) func() {
	return b.hub.Subscribe(l)
}

// Run builds everything once and, with Options.Watch, rebuilds the
// affected artifacts on every batch of file changes until ctx ends.
func (b *Bundler) Run(ctx context.Context) error {
	defer b.Close()

	b.Build(ctx)

	if !b.opts.Watch {
		<-ctx.Done()
		return nil
	}

	w, err := NewWatcher(WatcherConfig{
		Root:     b.opts.Dir,
		Paths:    CollectWatchPaths(b.opts.Dir, b.opts.Entry, b.opts.WatchPaths),
		Assets:   b.assetsDir(),
		Ignore:   b.opts.Ignore,
		Debounce: b.opts.Debounce,
	}, b.log)
	if err != nil {
		b.hub.EmitError(errors.New("E211").WithDetail("File watcher: " + err.Error()))
		<-ctx.Done()
		return nil
	}
	defer w.Close()

	return w.Run(ctx, b.apply)
}

// Build compiles every artifact once. It returns the first build error,
// which has also been delivered to listeners.
func (b *Bundler) Build(ctx context.Context) error {
	defer b.markReady()

	steps := []func() error{
		b.buildManifest,
		b.buildAssets,
		b.buildServiceWorker,
		b.buildMain,
		b.buildDocument,
	}

	var first error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// apply rebuilds what a batch of changes affects.
func (b *Bundler) apply(changes []Change) {
	var manifest, sw, main, doc bool
	for _, c := range changes {
		switch c.Type {
		case ChangeManifest:
			manifest = true
		case ChangeServiceWorker:
			sw = true
		case ChangeDocument:
			doc = true
		case ChangeAsset:
			b.updateAsset(c)
		default:
			main = true
		}
	}

	if manifest {
		b.buildManifest()
	}
	if sw {
		b.buildServiceWorker()
	}
	if main {
		b.buildMain()
		doc = true
	}
	if doc {
		b.buildDocument()
	}
}

// Close releases the esbuild context.
func (b *Bundler) Close() {
	if b.main != nil {
		b.main.Dispose()
	}
}

// Nodes returns a copy of the current node index.
func (b *Bundler) Nodes() NodeState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nodes.Clone()
}

// ServiceWorkerSource returns the service worker file name, or "" when the
// project has none.
func (b *Bundler) ServiceWorkerSource() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.swSource
}

// publish stores node and emits a change.
func (b *Bundler) publish(kind, variant string, node *Node) {
	b.mu.Lock()
	variants, ok := b.nodes[kind]
	if !ok {
		variants = make(map[string]*Node)
		b.nodes[kind] = variants
	}
	variants[variant] = node
	state := b.nodes.Clone()
	b.mu.Unlock()

	b.hub.EmitChange(kind, variant, state)
}

func (b *Bundler) fail(err error) error {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	b.log.Debug().Err(err).Msg("build failed")
	b.hub.EmitError(err)
	return err
}

func (b *Bundler) buildManifest() error {
	path := filepath.Join(b.opts.Dir, "manifest.json")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		data = defaultManifest(b.opts.Name)
	default:
		return b.fail(errors.New("E210").WithMessage("Could not read manifest.json").Wrap(err))
	}

	b.publish(KindManifest, VariantDefault, newNode(data))
	return nil
}

func defaultManifest(name string) []byte {
	m := map[string]string{
		"name":             name,
		"short_name":       name,
		"start_url":        "/",
		"display":          "minimal-ui",
		"background_color": "#fff",
		"theme_color":      "#fff",
	}
	data, _ := json.MarshalIndent(m, "", "  ")
	return data
}

func (b *Bundler) buildServiceWorker() error {
	var src string
	for _, name := range []string{"service-worker.js", "sw.js"} {
		p := filepath.Join(b.opts.Dir, name)
		if _, err := os.Stat(p); err == nil {
			src = name
			break
		}
	}

	b.mu.Lock()
	b.swSource = src
	b.mu.Unlock()

	if src == "" {
		b.publish(KindServiceWorker, VariantDefault, newNode(nil))
		return nil
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:       []string{filepath.Join(b.opts.Dir, src)},
		AbsWorkingDir:     b.opts.Dir,
		Outfile:           filepath.Join(b.outdir, src),
		Bundle:            true,
		Write:             false,
		Format:            api.FormatIIFE,
		Platform:          api.PlatformBrowser,
		MinifyWhitespace:  b.opts.Minify,
		MinifyIdentifiers: b.opts.Minify,
		MinifySyntax:      b.opts.Minify,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return b.fail(messagesError("E210", b.opts.Dir, result.Errors))
	}

	var buf []byte
	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".js") {
			buf = f.Contents
		}
	}
	b.publish(KindServiceWorker, VariantDefault, newNode(buf))
	return nil
}

func (b *Bundler) buildMain() error {
	result := b.main.Rebuild()
	if len(result.Errors) > 0 {
		return b.fail(messagesError("E210", b.opts.Dir, result.Errors))
	}
	for _, w := range result.Warnings {
		b.log.Debug().Str("warning", w.Text).Msg("esbuild warning")
	}

	var (
		scripts []api.OutputFile
		styles  []api.OutputFile
	)
	for _, f := range result.OutputFiles {
		rel := b.rel(f.Path)
		switch {
		case strings.HasSuffix(rel, ".js"):
			scripts = append(scripts, f)
		case strings.HasSuffix(rel, ".css"):
			styles = append(styles, f)
		case strings.HasSuffix(rel, ".map"):
		default:
			name := strings.TrimPrefix(rel, "assets/")
			b.publish(KindAssets, name, &Node{Buffer: f.Contents, Hash: f.Hash})
		}
	}

	// Chunks first so bundle.js, which imports them, is announced last.
	sort.SliceStable(scripts, func(i, j int) bool {
		return b.variant(scripts[j].Path) == VariantBundle && b.variant(scripts[i].Path) != VariantBundle
	})
	for _, f := range scripts {
		b.publish(KindScript, b.variant(f.Path), &Node{Buffer: f.Contents, Hash: f.Hash})
	}

	b.publish(KindStyle, VariantBundle, newNode(b.joinStyles(styles)))

	b.mu.Lock()
	b.lastErr = nil
	b.mu.Unlock()
	return nil
}

// joinStyles concatenates CSS outputs with bundle.css first.
func (b *Bundler) joinStyles(files []api.OutputFile) []byte {
	sort.SliceStable(files, func(i, j int) bool {
		return b.variant(files[i].Path) == VariantBundle && b.variant(files[j].Path) != VariantBundle
	})
	var out []byte
	for i, f := range files {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, f.Contents...)
	}
	return out
}

func (b *Bundler) buildDocument() error {
	var tmpl []byte
	path := filepath.Join(b.opts.Dir, "index.html")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		tmpl = data
	case os.IsNotExist(err):
	default:
		return b.fail(errors.New("E210").WithMessage("Could not read index.html").Wrap(err))
	}

	b.mu.RLock()
	hasStyle := len(b.nodes.Get(KindStyle, VariantBundle).bytes()) > 0
	b.mu.RUnlock()

	doc := renderDocument(tmpl, documentData{
		Title:    b.opts.Name,
		Script:   "/" + VariantBundle + ".js",
		Style:    "/" + VariantBundle + ".css",
		HasStyle: hasStyle,
	})
	b.publish(KindDocument, VariantDefault, newNode(doc))
	return nil
}

func (b *Bundler) assetsDir() string {
	if b.opts.Assets == "" {
		return ""
	}
	if filepath.IsAbs(b.opts.Assets) {
		return b.opts.Assets
	}
	return filepath.Join(b.opts.Dir, b.opts.Assets)
}

func (b *Bundler) buildAssets() error {
	dir := b.assetsDir()
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil
	}

	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if matchesIgnore(DefaultIgnore, p) {
			return nil
		}
		b.updateAsset(Change{Path: p, Type: ChangeAsset})
		return nil
	})
}

func (b *Bundler) updateAsset(c Change) {
	rel, err := filepath.Rel(b.assetsDir(), c.Path)
	if err != nil {
		return
	}
	name := filepath.ToSlash(rel)

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			b.mu.Lock()
			delete(b.nodes[KindAssets], name)
			b.mu.Unlock()
			return
		}
		b.log.Debug().Err(err).Str("asset", name).Msg("could not read asset")
		return
	}
	b.publish(KindAssets, name, newNode(data))
}

func (b *Bundler) rel(p string) string {
	rel, err := filepath.Rel(b.outdir, p)
	if err != nil {
		return filepath.Base(p)
	}
	return filepath.ToSlash(rel)
}

func (b *Bundler) variant(p string) string {
	return strings.TrimSuffix(strings.TrimSuffix(b.rel(p), ".js"), ".css")
}

// wait blocks until the first build has finished.
func (b *Bundler) wait(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return errors.New("E220").
			WithMessage("Request ended before the first build finished").
			Wrap(ctx.Err())
	}
}

func (b *Bundler) markReady() {
	b.readyOnce.Do(func() { close(b.ready) })
}

func (b *Bundler) lookup(ctx context.Context, kind, variant, label string) (*Node, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	node := b.nodes.Get(kind, variant)
	lastErr := b.lastErr
	b.mu.RUnlock()

	if node == nil {
		e := errors.New("E220").WithMessage("%s not found", label)
		if lastErr != nil {
			e.Wrap(lastErr)
		}
		return nil, e
	}
	return node, nil
}

// Manifest returns the web manifest.
func (b *Bundler) Manifest(ctx context.Context) (*Node, error) {
	return b.lookup(ctx, KindManifest, VariantDefault, "manifest")
}

// ServiceWorker returns the bundled service worker. Projects without one
// get an empty node.
func (b *Bundler) ServiceWorker(ctx context.Context) (*Node, error) {
	return b.lookup(ctx, KindServiceWorker, VariantDefault, "service worker")
}

// Script returns the script chunk called name; "bundle" is the entry.
func (b *Bundler) Script(ctx context.Context, name string) (*Node, error) {
	return b.lookup(ctx, KindScript, name, strconv.Quote(name+".js"))
}

// Style returns the CSS bundle.
func (b *Bundler) Style(ctx context.Context) (*Node, error) {
	return b.lookup(ctx, KindStyle, VariantBundle, "bundle.css")
}

// Document returns the HTML document. Every URL gets the same document so
// client-side routes resolve.
func (b *Bundler) Document(ctx context.Context, url string) (*Node, error) {
	return b.lookup(ctx, KindDocument, VariantDefault, fmt.Sprintf("document for %q", url))
}

// Asset returns a static asset by its path under the assets directory.
func (b *Bundler) Asset(ctx context.Context, name string) (*Node, error) {
	return b.lookup(ctx, KindAssets, name, strconv.Quote("assets/"+name))
}

func newNode(buf []byte) *Node {
	return &Node{Buffer: buf, Hash: hash(buf)}
}

func hash(buf []byte) string {
	return strconv.FormatUint(xxhash.Sum64(buf), 16)
}

func (n *Node) bytes() []byte {
	if n == nil {
		return nil
	}
	return n.Buffer
}

// messagesError converts esbuild messages into a coded error located at
// the first message.
func messagesError(code, dir string, msgs []api.Message) *errors.Error {
	first := msgs[0]
	e := errors.New(code).WithMessage("%s", first.Text)

	if loc := first.Location; loc != nil {
		if loc.LineText != "" {
			e.Location = &errors.Location{File: loc.File, Line: loc.Line, Column: loc.Column + 1}
			e.WithContext([]string{loc.LineText})
		} else {
			file := loc.File
			if file != "" && !filepath.IsAbs(file) {
				file = filepath.Join(dir, file)
			}
			e.WithLocation(file, loc.Line, loc.Column+1)
		}
		if loc.Suggestion != "" {
			e.Suggestion = "Did you mean " + strconv.Quote(loc.Suggestion) + "?"
		}
	}

	if len(msgs) > 1 {
		var b strings.Builder
		fmt.Fprintf(&b, "%d more error(s):", len(msgs)-1)
		for _, m := range msgs[1:] {
			b.WriteString("\n  ")
			if m.Location != nil {
				fmt.Fprintf(&b, "%s:%d:%d: ", m.Location.File, m.Location.Line, m.Location.Column+1)
			}
			b.WriteString(m.Text)
		}
		e.Detail = b.String()
	}

	return e
}

func parseTarget(s string) (api.Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "es2020":
		return api.ES2020, nil
	case "esnext":
		return api.ESNext, nil
	case "es2015", "es6":
		return api.ES2015, nil
	case "es2016":
		return api.ES2016, nil
	case "es2017":
		return api.ES2017, nil
	case "es2018":
		return api.ES2018, nil
	case "es2019":
		return api.ES2019, nil
	case "es2021":
		return api.ES2021, nil
	case "es2022":
		return api.ES2022, nil
	default:
		return api.DefaultTarget, errors.New("E211").
			WithDetail("Unsupported build.target " + strconv.Quote(s)).
			WithSuggestion("Use one of es2015-es2022 or esnext")
	}
}
