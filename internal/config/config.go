package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vango-dev/devgate/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "devgate.json"

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultPortMin is the lower bound of the port search range.
	DefaultPortMin = 8080

	// DefaultPortMax is the upper bound of the port search range.
	DefaultPortMax = 9000

	// DefaultRenderInterval is the minimum delay between dashboard redraws.
	DefaultRenderInterval = 250 * time.Millisecond

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultTarget is the default JavaScript language target.
	DefaultTarget = "es2020"

	// DefaultAssets is the default static assets directory.
	DefaultAssets = "assets"
)

// Config represents the complete devgate.json configuration.
type Config struct {
	// Name is the project name, used for the document title and the
	// generated web manifest.
	Name string `json:"name,omitempty"`

	// Entry is the JavaScript entry file, relative to the config file.
	Entry string `json:"entry,omitempty"`

	// Assets is the static assets directory.
	Assets string `json:"assets,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty"`

	// Build contains production build configuration.
	Build BuildConfig `json:"build,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string

	// dir is used when no config file exists.
	dir string
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// PortMin is the first port tried.
	PortMin int `json:"portMin,omitempty"`

	// PortMax is the last port tried.
	PortMax int `json:"portMax,omitempty"`

	// Quiet disables the terminal dashboard.
	Quiet bool `json:"quiet,omitempty"`

	// RenderInterval is the dashboard throttle window (e.g. "250ms").
	RenderInterval string `json:"renderInterval,omitempty"`

	// Watch contains extra paths to watch for changes.
	Watch []string `json:"watch,omitempty"`

	// Ignore contains patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty"`

	// ClearErrorOnChange clears the dashboard error when an artifact
	// rebuilds successfully.
	ClearErrorOnChange bool `json:"clearErrorOnChange,omitempty"`

	// MetricsAddr enables a Prometheus listener on this address.
	MetricsAddr string `json:"metricsAddr,omitempty"`
}

// BuildConfig contains bundler and production build settings.
type BuildConfig struct {
	// Output is the output directory for builds.
	Output string `json:"output,omitempty"`

	// Minify enables minification.
	Minify bool `json:"minify,omitempty"`

	// SourceMaps enables inline source maps.
	SourceMaps bool `json:"sourceMaps,omitempty"`

	// Target is the JavaScript language target (e.g. "es2020").
	Target string `json:"target,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string `json:"level,omitempty"`

	// File receives log output while the dashboard owns the terminal.
	File string `json:"file,omitempty"`

	// Pretty enables human-readable console output.
	Pretty bool `json:"pretty,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Entry:  "index.js",
		Assets: DefaultAssets,
		Dev: DevConfig{
			Host:           DefaultHost,
			PortMin:        DefaultPortMin,
			PortMax:        DefaultPortMax,
			RenderInterval: DefaultRenderInterval.String(),
		},
		Build: BuildConfig{
			Output: DefaultOutput,
			Target: DefaultTarget,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for devgate.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadOrDefault reads devgate.json from dir, falling back to defaults
// rooted at dir when the file does not exist.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(unwrapCause(err)) {
		return nil, err
	}

	abs, absErr := filepath.Abs(dir)
	if absErr != nil {
		abs = dir
	}
	cfg = New()
	cfg.dir = abs
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to read " + path).
			Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse devgate.json: " + err.Error()).
			WithSuggestion("Check that devgate.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the project directory: the directory containing the
// config file, or the directory passed to LoadOrDefault.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return c.dir
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Entry == "" {
		c.Entry = "index.js"
	}
	if c.Assets == "" {
		c.Assets = DefaultAssets
	}
	if c.Name == "" {
		c.Name = filepath.Base(c.Dir())
	}

	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.PortMin == 0 {
		c.Dev.PortMin = DefaultPortMin
	}
	if c.Dev.PortMax == 0 {
		c.Dev.PortMax = DefaultPortMax
	}
	if c.Dev.RenderInterval == "" {
		c.Dev.RenderInterval = DefaultRenderInterval.String()
	}

	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
	if c.Build.Target == "" {
		c.Build.Target = DefaultTarget
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Entry == "" {
		return errors.New("E121").
			WithSuggestion("Pass the entry file: devgate start index.js")
	}
	if c.Dev.PortMin < 1 || c.Dev.PortMax > 65535 || c.Dev.PortMin > c.Dev.PortMax {
		return errors.New("E122").
			WithDetail("Port range " + strconv.Itoa(c.Dev.PortMin) + "-" + strconv.Itoa(c.Dev.PortMax) + " must satisfy 1 <= min <= max <= 65535")
	}
	if _, err := time.ParseDuration(c.Dev.RenderInterval); err != nil {
		return errors.New("E120").
			WithDetail("dev.renderInterval: " + err.Error())
	}
	return nil
}

// RenderDelay returns the parsed render interval.
func (c *Config) RenderDelay() time.Duration {
	d, err := time.ParseDuration(c.Dev.RenderInterval)
	if err != nil || d <= 0 {
		return DefaultRenderInterval
	}
	return d
}

// DevURL returns the URL for a dev server bound to port.
func (c *Config) DevURL(port int) string {
	host := c.Dev.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + host + ":" + strconv.Itoa(port)
}

// EntryPath returns the absolute path to the entry file.
func (c *Config) EntryPath() string {
	return c.resolve(c.Entry)
}

// AssetsPath returns the absolute path to the assets directory.
func (c *Config) AssetsPath() string {
	return c.resolve(c.Assets)
}

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string {
	return c.resolve(c.Build.Output)
}

// LogPath returns the absolute path to the log file, or "" when logging
// to a file is disabled.
func (c *Config) LogPath() string {
	if c.Log.File == "" {
		return ""
	}
	return c.resolve(c.Log.File)
}

func (c *Config) resolve(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing devgate.json, or startDir itself when
// no parent has one.
func FindProjectRoot(startDir string) (string, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := start
	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}

// LoadForEntry loads the configuration governing an entry file and
// points Entry at it. An empty entry keeps the configured one.
func LoadForEntry(entry string) (*Config, error) {
	startDir := "."
	if entry != "" {
		info, err := os.Stat(entry)
		if err != nil {
			return nil, errors.New("E141").
				WithDetail("No such file: " + entry).
				Wrap(err)
		}
		if info.IsDir() {
			startDir = entry
		} else {
			startDir = filepath.Dir(entry)
		}
	}

	root, err := FindProjectRoot(startDir)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadOrDefault(root)
	if err != nil {
		return nil, err
	}

	if entry != "" {
		info, _ := os.Stat(entry)
		if !info.IsDir() {
			abs, err := filepath.Abs(entry)
			if err != nil {
				return nil, err
			}
			cfg.Entry = abs
		}
	}

	return cfg, nil
}

func unwrapCause(err error) error {
	if e, ok := err.(*errors.Error); ok && e.Wrapped != nil {
		return e.Wrapped
	}
	return err
}
