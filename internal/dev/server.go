package dev

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vango-dev/devgate/internal/compiler"
	"github.com/vango-dev/devgate/internal/config"
	"github.com/vango-dev/devgate/internal/errors"
	"github.com/vango-dev/devgate/internal/gateway"
	"github.com/vango-dev/devgate/internal/metrics"
	"github.com/vango-dev/devgate/internal/port"
	"github.com/vango-dev/devgate/internal/state"
)

const shutdownTimeout = 5 * time.Second

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Compiler produces the artifacts. Required.
	Compiler compiler.Compiler

	// Output receives the dashboard. Defaults to os.Stdout.
	Output io.Writer

	// Color enables dashboard colors.
	Color bool

	// Logger receives diagnostics. The dashboard is separate.
	Logger zerolog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Server is the development server. It owns the build state, the
// dashboard and the HTTP listener.
type Server struct {
	config   *config.Config
	options  ServerOptions
	state    *state.BuildState
	gateway  *gateway.Gateway
	log      zerolog.Logger
	styles   Styles
	terminal *Terminal
	sched    *Scheduler

	mu            sync.Mutex
	running       bool
	httpServer    *http.Server
	metricsServer *http.Server
}

// NewServer creates a new development server.
func NewServer(options ServerOptions) (*Server, error) {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	log := options.Logger.With().Str("component", "server").Logger()

	gw, err := gateway.New(options.Compiler,
		gateway.WithLogger(options.Logger.With().Str("component", "gateway").Logger()),
		gateway.WithMetrics(options.Metrics),
	)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:  options.Config,
		options: options,
		state:   state.New(),
		gateway: gw,
		log:     log,
		styles:  NewStyles(options.Color),
	}, nil
}

// State returns the build state shown on the dashboard.
func (s *Server) State() *state.BuildState {
	return s.state
}

// Start runs the compiler and serves its artifacts until ctx is done.
// When no port is free the error is shown on the dashboard and Start keeps
// running without a listener.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()
	defer s.Stop()

	cfg := s.config
	if !cfg.Dev.Quiet {
		s.terminal = NewTerminal(context.WithoutCancel(ctx), s.options.Output)
		s.terminal.Start()
		s.sched = NewScheduler(cfg.RenderDelay(), s.render)
	}

	agg := NewAggregator(AggregatorConfig{
		State:              s.state,
		Render:             s.requestRender,
		ClearErrorOnChange: cfg.Dev.ClearErrorOnChange,
		Metrics:            s.options.Metrics,
		Logger:             s.options.Logger,
	})
	unsubscribe := s.options.Compiler.Subscribe(agg)
	defer unsubscribe()
	s.requestRender()

	go func() {
		err := s.options.Compiler.Run(ctx)
		if err != nil && !stderrors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("compiler stopped")
			s.state.SetError(errors.Text(err))
			s.requestRender()
		}
	}()

	ln, p, err := port.Listen(cfg.Dev.Host, cfg.Dev.PortMin, cfg.Dev.PortMax)
	if err != nil {
		s.state.SetError(errors.Text(err))
		s.requestRender()
		s.log.Error().Err(err).Msg("no listener")
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Handler:           s.gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- errors.FromError(err, "E201")
			return
		}
		errCh <- nil
	}()

	url := cfg.DevURL(p)
	s.state.SetURL(url)
	s.log.Info().Str("url", url).Msg("Listening")
	s.requestRender()

	s.startMetrics()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) startMetrics() {
	addr := s.config.Dev.MetricsAddr
	if addr == "" || s.options.Metrics == nil {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.options.Metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.metricsServer = srv
	s.mu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn().Err(err).Str("addr", addr).Msg("metrics listener failed")
		}
	}()
	s.log.Info().Str("addr", addr).Msg("Serving metrics")
}

// Stop shuts down the listeners and the dashboard. The last frame stays on
// screen.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range []*http.Server{s.httpServer, s.metricsServer} {
		if srv != nil {
			srv.Shutdown(ctx)
		}
	}

	if s.sched != nil {
		s.sched.Flush()
	}
	if s.terminal != nil {
		if err := s.terminal.Stop(); err != nil {
			s.log.Debug().Err(err).Msg("dashboard stopped")
		}
	}
}

func (s *Server) requestRender() {
	if s.sched != nil {
		s.sched.RequestRender()
	}
}

func (s *Server) render() {
	s.terminal.Show(Dashboard(s.state.Snapshot(), s.styles))
}
