package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vango-dev/devgate/internal/compiler"
	"github.com/vango-dev/devgate/internal/config"
	"github.com/vango-dev/devgate/internal/dev"
	"github.com/vango-dev/devgate/internal/logging"
	"github.com/vango-dev/devgate/internal/metrics"
)

type startFlags struct {
	quiet       bool
	host        string
	portMin     int
	portMax     int
	logLevel    string
	logFile     string
	metricsAddr string
}

func startCmd() *cobra.Command {
	var flags startFlags

	cmd := &cobra.Command{
		Use:   "start [entry]",
		Short: "Start the development gateway",
		Long: `Start the development gateway.

The entry is compiled and rebuilt on every change. Artifacts are served
from the first free port in the configured range:

  /manifest.json           web manifest
  /service-worker.js       service worker (also /sw.js)
  /<name>.js               entry bundle and chunks
  /bundle.css              CSS imported by the entry
  /assets/<path>           static assets
  anything else            the HTML document

Examples:
  devgate start
  devgate start src/index.js
  devgate start --port-min=3000 --port-max=3010
  devgate start --quiet --log-level=debug`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry string
			if len(args) > 0 {
				entry = args[0]
			}
			return runStart(cmd, entry, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Disable the dashboard and log to stderr")
	cmd.Flags().StringVarP(&flags.host, "host", "H", "", "Host to bind to (default from devgate.json)")
	cmd.Flags().IntVar(&flags.portMin, "port-min", 0, "First port to try (default from devgate.json)")
	cmd.Flags().IntVar(&flags.portMax, "port-max", 0, "Last port to try (default from devgate.json)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Write logs to this file while the dashboard runs")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

func runStart(cmd *cobra.Command, entry string, flags startFlags) error {
	// Load config
	cfg, err := config.LoadForEntry(entry)
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if cmd.Flags().Changed("quiet") {
		cfg.Dev.Quiet = flags.quiet
	}
	if flags.host != "" {
		cfg.Dev.Host = flags.host
	}
	if flags.portMin > 0 {
		cfg.Dev.PortMin = flags.portMin
	}
	if flags.portMax > 0 {
		cfg.Dev.PortMax = flags.portMax
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFile != "" {
		cfg.Log.File = flags.logFile
	}
	if flags.metricsAddr != "" {
		cfg.Dev.MetricsAddr = flags.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(cfg.EntryPath()); err != nil {
		return errNoEntry(cfg.EntryPath(), err)
	}

	log, closeLog, err := logging.Open(logging.Session{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		File:    cfg.LogPath(),
		Console: cfg.Dev.Quiet,
	})
	if err != nil {
		warn("Could not open log file: %v", err)
	}
	defer closeLog()

	bundler, err := compiler.NewBundler(compiler.Options{
		Dir:        cfg.Dir(),
		Entry:      cfg.EntryPath(),
		Name:       cfg.Name,
		Assets:     cfg.AssetsPath(),
		SourceMaps: cfg.Build.SourceMaps,
		Target:     cfg.Build.Target,
		Watch:      true,
		WatchPaths: cfg.Dev.Watch,
		Ignore:     cfg.Dev.Ignore,
		Debounce:   100 * time.Millisecond,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Dev.MetricsAddr != "" {
		m = metrics.New()
	}

	server, err := dev.NewServer(dev.ServerOptions{
		Config:   cfg,
		Compiler: bundler,
		Output:   os.Stdout,
		Color:    isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		Logger:   log,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	// Handle signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("entry", cfg.EntryPath()).Msg("Starting")
	return server.Start(ctx)
}
