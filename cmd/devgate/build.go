package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vango-dev/devgate/internal/build"
	"github.com/vango-dev/devgate/internal/config"
	"github.com/vango-dev/devgate/internal/errors"
)

func buildCmd() *cobra.Command {
	var (
		output     string
		minify     bool
		sourceMaps bool
		target     string
	)

	cmd := &cobra.Command{
		Use:   "build [entry]",
		Short: "Build for production",
		Long: `Compile the entry once and write every artifact to the output
directory: document, scripts, stylesheet, web manifest, service worker
and static assets.

Examples:
  devgate build
  devgate build src/index.js --output=public
  devgate build --minify=false --sourcemaps`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry string
			if len(args) > 0 {
				entry = args[0]
			}
			return runBuild(entry, output, minify, sourceMaps, target)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from devgate.json)")
	cmd.Flags().BoolVar(&minify, "minify", true, "Minify output")
	cmd.Flags().BoolVar(&sourceMaps, "sourcemaps", false, "Generate inline source maps")
	cmd.Flags().StringVar(&target, "target", "", "JavaScript target, e.g. es2020 (default from devgate.json)")

	return cmd
}

func runBuild(entry, output string, minify, sourceMaps bool, target string) error {
	// Load config
	cfg, err := config.LoadForEntry(entry)
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if output != "" {
		cfg.Build.Output = output
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(cfg.EntryPath()); err != nil {
		return errNoEntry(cfg.EntryPath(), err)
	}

	fmt.Println("  Building for production...")
	fmt.Println()

	builder := build.New(cfg, build.Options{
		Minify:     minify,
		SourceMaps: sourceMaps,
		Target:     target,
		OnProgress: func(step string) {
			info("%s", step)
		},
	})

	// Handle signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	// Print results
	fmt.Println()
	success("Build complete in %s", result.Duration.Round(1000000))
	fmt.Println()
	fmt.Printf("  %s/\n", cfg.Build.Output)
	for _, f := range result.Files {
		fmt.Printf("    %-32s %9s  %9s gzip\n", f.Path, formatBytes(f.Size), formatBytes(f.GzipSize))
	}
	raw, gz := result.TotalSize()
	fmt.Println()
	fmt.Printf("    %-32s %9s  %9s gzip\n", "total", formatBytes(raw), formatBytes(gz))
	fmt.Println()

	return nil
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(n int) string {
	return strings.ReplaceAll(humanize.Bytes(uint64(n)), " ", "")
}

func errNoEntry(path string, cause error) error {
	return errors.New("E141").
		WithDetail("No such file: " + path).
		WithSuggestion("Pass the entry file, e.g. devgate start src/index.js, or set \"entry\" in " + config.ConfigFileName).
		Wrap(cause)
}
