package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/HMasataka/logging"
	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
)

const (
	DefaultPort = 8000
	DefaultRoot = "."
	DefaultPage = "demo-interface.html"
)

var (
	ErrInvalidPort     = errors.New("port out of range")
	ErrRootNotDir      = errors.New("root is not a directory")
	ErrInvalidLevel    = errors.New("unknown log level")
	ErrInvalidFormat   = errors.New("unknown log format")
	ErrInvalidDuration = errors.New("duration must be positive")
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	LiveReload LiveReloadConfig `toml:"livereload"`
	Log        LogConfig        `toml:"log"`
}

type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	Root            string   `toml:"root"`
	Page            string   `toml:"page"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type LiveReloadConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
	Debounce Duration `toml:"debounce"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration reads "500ms" style strings from TOML.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration the launcher runs with.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			Root:            DefaultRoot,
			Page:            DefaultPage,
			ShutdownTimeout: Duration(5 * time.Second),
		},
		LiveReload: LiveReloadConfig{
			Enabled:  false,
			Interval: Duration(500 * time.Millisecond),
			Debounce: Duration(250 * time.Millisecond),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML file on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d: %w", c.Server.Port, ErrInvalidPort)
	}

	info, err := os.Stat(c.Server.Root)
	if err != nil {
		return fmt.Errorf("config: server.root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: server.root %s: %w", c.Server.Root, ErrRootNotDir)
	}

	if !lo.Contains(logLevels, c.Log.Level) {
		return fmt.Errorf("config: log.level %q: %w", c.Log.Level, ErrInvalidLevel)
	}
	if !lo.Contains(logFormats, c.Log.Format) {
		return fmt.Errorf("config: log.format %q: %w", c.Log.Format, ErrInvalidFormat)
	}

	durations := []lo.Tuple2[string, Duration]{
		lo.T2("server.shutdown_timeout", c.Server.ShutdownTimeout),
		lo.T2("livereload.interval", c.LiveReload.Interval),
		lo.T2("livereload.debounce", c.LiveReload.Debounce),
	}
	for _, d := range durations {
		if d.B <= 0 {
			return fmt.Errorf("config: %s: %w", d.A, ErrInvalidDuration)
		}
	}

	return nil
}

// Addr is the listen address. An empty host binds all interfaces.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// BrowserURL is the URL printed in the banner.
func (c Config) BrowserURL() string {
	return fmt.Sprintf("http://localhost:%d/%s", c.Server.Port, c.Server.Page)
}

func (c Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the slog logger described by the log section. Values
// attached with logging.WithValue are added to every record.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if c.Log.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(logging.NewHandler(h))
}
