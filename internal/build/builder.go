package build

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/vango-dev/devgate/internal/compiler"
	"github.com/vango-dev/devgate/internal/compress"
	"github.com/vango-dev/devgate/internal/config"
	"github.com/vango-dev/devgate/internal/errors"
)

// File is one written artifact.
type File struct {
	// Path is relative to the output directory, with forward slashes.
	Path string

	// Size is the raw size in bytes.
	Size int

	// GzipSize is the estimated transfer size.
	GzipSize int
}

// Result contains the build output.
type Result struct {
	// Duration is how long the build took.
	Duration time.Duration

	// Output is the output directory.
	Output string

	// Files lists every written artifact, sorted by path.
	Files []File
}

// TotalSize returns the raw and gzip totals.
func (r *Result) TotalSize() (raw, gzip int) {
	for _, f := range r.Files {
		raw += f.Size
		gzip += f.GzipSize
	}
	return raw, gzip
}

// Options configures the builder.
type Options struct {
	// Minify enables minification.
	Minify bool

	// SourceMaps enables inline source maps.
	SourceMaps bool

	// Target is the JavaScript language target (e.g. "es2020").
	Target string

	// Logger receives compiler diagnostics.
	Logger zerolog.Logger

	// OnProgress is called with progress updates.
	OnProgress func(step string)
}

// Builder handles production builds.
type Builder struct {
	config  *config.Config
	options Options
}

// New creates a new builder.
func New(cfg *config.Config, options Options) *Builder {
	// Apply config defaults to options
	if !options.Minify && cfg.Build.Minify {
		options.Minify = true
	}
	if !options.SourceMaps && cfg.Build.SourceMaps {
		options.SourceMaps = true
	}
	if options.Target == "" && cfg.Build.Target != "" {
		options.Target = cfg.Build.Target
	}

	return &Builder{
		config:  cfg,
		options: options,
	}
}

// Build compiles every artifact once and writes it to the output
// directory.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	outputDir := b.config.OutputPath()

	b.progress("Compiling...")
	bundler, err := compiler.NewBundler(compiler.Options{
		Dir:        b.config.Dir(),
		Entry:      b.config.EntryPath(),
		Name:       b.config.Name,
		Assets:     b.config.AssetsPath(),
		Minify:     b.options.Minify,
		SourceMaps: b.options.SourceMaps,
		Target:     b.options.Target,
		Logger:     b.options.Logger,
	})
	if err != nil {
		return nil, err
	}
	defer bundler.Close()

	if err := bundler.Build(ctx); err != nil {
		return nil, err
	}

	// Clean output directory
	b.progress("Cleaning output directory...")
	if err := os.RemoveAll(outputDir); err != nil {
		return nil, errors.New("E142").Wrap(err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.New("E142").Wrap(err)
	}

	b.progress("Writing artifacts...")
	result := &Result{Output: outputDir}
	for path, buf := range artifacts(bundler) {
		f, err := writeArtifact(outputDir, path, buf)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, f)
	}
	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})

	result.Duration = time.Since(start)
	return result, nil
}

// artifacts maps output paths to contents. Empty artifacts are skipped,
// except the document.
func artifacts(bundler *compiler.Bundler) map[string][]byte {
	nodes := bundler.Nodes()
	out := make(map[string][]byte)

	add := func(path string, node *compiler.Node, keepEmpty bool) {
		if node == nil || (len(node.Buffer) == 0 && !keepEmpty) {
			return
		}
		out[path] = node.Buffer
	}

	add("manifest.json", nodes.Get(compiler.KindManifest, compiler.VariantDefault), false)
	add("index.html", nodes.Get(compiler.KindDocument, compiler.VariantDefault), true)
	add("bundle.css", nodes.Get(compiler.KindStyle, compiler.VariantBundle), false)

	sw := bundler.ServiceWorkerSource()
	if sw == "" {
		sw = "service-worker.js"
	}
	add(sw, nodes.Get(compiler.KindServiceWorker, compiler.VariantDefault), false)

	for name, node := range nodes[compiler.KindScript] {
		add(name+".js", node, false)
	}
	for name, node := range nodes[compiler.KindAssets] {
		add("assets/"+name, node, true)
	}
	return out
}

func writeArtifact(outputDir, rel string, buf []byte) (File, error) {
	dst := filepath.Join(outputDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return File{}, errors.New("E142").WithDetail("Could not create " + filepath.Dir(dst)).Wrap(err)
	}
	if err := os.WriteFile(dst, buf, 0644); err != nil {
		return File{}, errors.New("E142").WithDetail("Could not write " + dst).Wrap(err)
	}

	f := File{Path: rel, Size: len(buf)}
	if len(buf) > 0 {
		f.GzipSize = compress.SizeOrRaw(buf)
	}
	return f, nil
}

// progress reports build progress.
func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

// Clean removes the build output directory.
func (b *Builder) Clean() error {
	return os.RemoveAll(b.config.OutputPath())
}
