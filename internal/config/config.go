package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Log output formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Strategy names that may back async mode.
const (
	StrategyBounded   = "bounded"
	StrategyUnbounded = "unbounded"
)

// Saturation policies for the bounded pool.
const (
	PolicyReject = "reject"
	PolicyBlock  = "block"
)

// Config holds application configuration loaded from environment variables.
// It is read once at startup and never mutated afterwards.
type Config struct {
	ListenAddr     string        `env:"THREADBENCH_LISTEN_ADDR" envDefault:":8080"`
	DBPath         string        `env:"THREADBENCH_DB_PATH" envDefault:":memory:"`
	LogLevel       slog.Level    `env:"THREADBENCH_LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"THREADBENCH_LOG_FORMAT" envDefault:"json"`
	AsyncStrategy  string        `env:"THREADBENCH_ASYNC_STRATEGY" envDefault:"bounded"`
	RequestTimeout time.Duration `env:"THREADBENCH_REQUEST_TIMEOUT" envDefault:"30s"`

	Pool      PoolConfig
	Simulator SimulatorConfig
}

// PoolConfig holds the bounded worker pool parameters.
type PoolConfig struct {
	CoreSize      int           `env:"THREADBENCH_POOL_CORE_SIZE" envDefault:"200"`
	MaxSize       int           `env:"THREADBENCH_POOL_MAX_SIZE" envDefault:"500"`
	QueueCapacity int           `env:"THREADBENCH_POOL_QUEUE_CAPACITY" envDefault:"1000"`
	KeepAlive     time.Duration `env:"THREADBENCH_POOL_KEEP_ALIVE" envDefault:"60s"`
	Saturation    string        `env:"THREADBENCH_POOL_SATURATION" envDefault:"reject"`
	NamePrefix    string        `env:"THREADBENCH_POOL_NAME_PREFIX" envDefault:"platform-"`
}

// SimulatorConfig holds the simulated work parameters.
type SimulatorConfig struct {
	MinDelay  time.Duration `env:"THREADBENCH_MIN_DELAY" envDefault:"50ms"`
	MaxDelay  time.Duration `env:"THREADBENCH_MAX_DELAY" envDefault:"200ms"`
	TailEvery uint64        `env:"THREADBENCH_TAIL_EVERY" envDefault:"10"`
	TailExtra time.Duration `env:"THREADBENCH_TAIL_EXTRA" envDefault:"10ms"`
}

// Load reads configuration from the process environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadFrom is Load with an explicit environment, used by tests.
func loadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the executors cannot honor.
func (c Config) Validate() error {
	var errs []error

	switch c.LogFormat {
	case LogFormatJSON, LogFormatText:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	switch c.AsyncStrategy {
	case StrategyBounded, StrategyUnbounded:
	default:
		errs = append(errs, fmt.Errorf("unknown async strategy %q", c.AsyncStrategy))
	}

	if c.Pool.CoreSize < 1 {
		errs = append(errs, fmt.Errorf("pool core size must be at least 1, got %d", c.Pool.CoreSize))
	}
	if c.Pool.MaxSize < c.Pool.CoreSize {
		errs = append(errs, fmt.Errorf("pool max size %d is below core size %d", c.Pool.MaxSize, c.Pool.CoreSize))
	}
	if c.Pool.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("pool queue capacity must not be negative, got %d", c.Pool.QueueCapacity))
	}
	switch c.Pool.Saturation {
	case PolicyReject, PolicyBlock:
	default:
		errs = append(errs, fmt.Errorf("unknown saturation policy %q", c.Pool.Saturation))
	}

	if c.Simulator.MinDelay < 0 || c.Simulator.MaxDelay < c.Simulator.MinDelay {
		errs = append(errs, fmt.Errorf("delay range [%s, %s] is invalid", c.Simulator.MinDelay, c.Simulator.MaxDelay))
	}
	if c.Simulator.TailEvery < 1 {
		errs = append(errs, errors.New("tail every must be at least 1"))
	}

	return errors.Join(errs...)
}

// NewLogger creates a structured logger writing to w at the given level.
// The json format is meant for production; text renders colourised lines for
// local runs.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, LogFormatText) {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
