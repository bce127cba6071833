// Package config loads labelle.toml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	EnvConfig        = "LABELLE_CONFIG"
	EnvLogLevel      = "LABELLE_LOG_LEVEL"
	EnvVerbose       = "LABELLE_VERBOSE"
	EnvNoMargins     = "LABELLE_DEV_MODE_NO_MARGINS"
	DefaultTapeMm    = 12
	DefaultFont      = "goregular"
	DefaultMarginPx  = 56
	DefaultSpacingPx = 4
	DefaultListen    = ":8080"
	DefaultIOTimeout = 5 * time.Second
)

// Duration reads Go durations such as "5s" from TOML strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Device        string   `toml:"device"`
	TapeMm        int      `toml:"tape_size_mm"`
	Font          string   `toml:"font"`
	FontDirs      []string `toml:"font_dirs"`
	MarginPx      int      `toml:"margin_px"`
	SpacingPx     int      `toml:"spacing_px"`
	CalibrationDB string   `toml:"calibration_db"`
	LogLevel      string   `toml:"log_level"`
	Verbose       bool     `toml:"verbose"`
	Listen        string   `toml:"listen"`
	IOTimeout     Duration `toml:"io_timeout"`
}

// Dir is where labelle keeps its configuration and calibrations.
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "labelle")
}

func Default() Config {
	return Config{
		TapeMm:        DefaultTapeMm,
		Font:          DefaultFont,
		MarginPx:      DefaultMarginPx,
		SpacingPx:     DefaultSpacingPx,
		CalibrationDB: filepath.Join(Dir(), "calibration.db"),
		LogLevel:      "info",
		Listen:        DefaultListen,
		IOTimeout:     Duration{DefaultIOTimeout},
	}
}

// Path is the configuration file read by Load.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(Dir(), "labelle.toml")
}

// Load reads the configuration file at Path. A missing file gives the
// defaults. Environment overrides are applied last.
func Load() (Config, error) {
	cfg, err := LoadFile(Path())
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("Couldn't read config %s:\n%w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("Couldn't parse config %s:\n%w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvVerbose); ok && truthy(v) {
		c.Verbose = true
	}
	if v, ok := lookup(EnvNoMargins); ok && truthy(v) {
		c.MarginPx = 0
	}
}

func truthy(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func (c Config) Validate() error {
	switch {
	case c.TapeMm <= 0:
		return fmt.Errorf("tape_size_mm must be positive, got %d", c.TapeMm)
	case c.MarginPx < 0:
		return fmt.Errorf("margin_px can't be negative, got %d", c.MarginPx)
	case c.SpacingPx < 0:
		return fmt.Errorf("spacing_px can't be negative, got %d", c.SpacingPx)
	case c.IOTimeout.Duration <= 0:
		return fmt.Errorf("io_timeout must be positive, got %s", c.IOTimeout)
	case strings.TrimSpace(c.Listen) == "":
		return errors.New("listen is empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level is the minimum level to log at. Verbose always means debug.
func (c Config) Level() (slog.Level, error) {
	if c.Verbose {
		return slog.LevelDebug, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("Unknown log_level %q:\n%w", c.LogLevel, err)
	}
	return l, nil
}
