package dev

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/devgate/internal/compiler"
	"github.com/vango-dev/devgate/internal/config"
	"github.com/vango-dev/devgate/internal/errors"
)

// fakeCompiler publishes a fixed set of nodes when run.
type fakeCompiler struct {
	compiler.Hub
	nodes compiler.NodeState
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{nodes: compiler.NodeState{
		compiler.KindManifest: {compiler.VariantDefault: {Buffer: []byte(`{"name":"app"}`)}},
		compiler.KindScript:   {compiler.VariantBundle: {Buffer: []byte("console.log('hi')")}},
		compiler.KindDocument: {compiler.VariantDefault: {Buffer: []byte("<!doctype html>")}},
	}}
}

func (f *fakeCompiler) Run(ctx context.Context) error {
	for kind, variants := range f.nodes {
		for variant := range variants {
			f.EmitChange(kind, variant, f.nodes)
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeCompiler) get(kind, variant string) (*compiler.Node, error) {
	if n := f.nodes.Get(kind, variant); n != nil {
		return n, nil
	}
	return nil, errors.New("E220").WithMessage("%s not found", kind)
}

func (f *fakeCompiler) Manifest(context.Context) (*compiler.Node, error) {
	return f.get(compiler.KindManifest, compiler.VariantDefault)
}
func (f *fakeCompiler) ServiceWorker(context.Context) (*compiler.Node, error) {
	return f.get(compiler.KindServiceWorker, compiler.VariantDefault)
}
func (f *fakeCompiler) Script(_ context.Context, name string) (*compiler.Node, error) {
	return f.get(compiler.KindScript, name)
}
func (f *fakeCompiler) Style(context.Context) (*compiler.Node, error) {
	return f.get(compiler.KindStyle, compiler.VariantBundle)
}
func (f *fakeCompiler) Document(context.Context, string) (*compiler.Node, error) {
	return f.get(compiler.KindDocument, compiler.VariantDefault)
}
func (f *fakeCompiler) Asset(_ context.Context, name string) (*compiler.Node, error) {
	return f.get(compiler.KindAssets, name)
}

func testConfig(t *testing.T, min, max int) *config.Config {
	t.Helper()
	cfg, err := config.LoadOrDefault(t.TempDir())
	require.NoError(t, err)
	cfg.Dev.Host = "127.0.0.1"
	cfg.Dev.PortMin = min
	cfg.Dev.PortMax = max
	cfg.Dev.Quiet = true
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return p
}

func startServer(t *testing.T, srv *Server) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	}
}

func TestServer_PortExhausted(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	p := ln.Addr().(*net.TCPAddr).Port

	srv, err := NewServer(ServerOptions{
		Config:   testConfig(t, p, p),
		Compiler: newFakeCompiler(),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	stop := startServer(t, srv)
	defer stop()

	require.Eventually(t, func() bool {
		return strings.HasPrefix(srv.State().Error(), "E200")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, srv.State().URL())

	// The compiler keeps running without a listener.
	require.Eventually(t, func() bool {
		rec, _ := srv.State().Record("script")
		return rec.Done
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_ServesArtifacts(t *testing.T) {
	p := freePort(t)
	srv, err := NewServer(ServerOptions{
		Config:   testConfig(t, p, p+20),
		Compiler: newFakeCompiler(),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	stop := startServer(t, srv)
	defer stop()

	require.Eventually(t, func() bool {
		return srv.State().URL() != ""
	}, 5*time.Second, 10*time.Millisecond)
	url := srv.State().URL()
	assert.True(t, strings.HasPrefix(url, "http://127.0.0.1:"))

	resp, err := http.Get(url + "/manifest.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"name":"app"}`, string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(url + "/bundle.css")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "style not found", string(body))

	require.Eventually(t, func() bool {
		rec, _ := srv.State().Record("manifest")
		return rec.Done && rec.Size > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_Dashboard(t *testing.T) {
	var out syncBuffer
	p := freePort(t)
	cfg := testConfig(t, p, p+20)
	cfg.Dev.Quiet = false
	cfg.Dev.RenderInterval = "10ms"

	srv, err := NewServer(ServerOptions{
		Config:   cfg,
		Compiler: newFakeCompiler(),
		Output:   &out,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	stop := startServer(t, srv)

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "Listening on") && strings.Contains(s, "Total size")
	}, 5*time.Second, 10*time.Millisecond)

	stop()
}
