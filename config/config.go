// Package config holds the runtime settings of the lasr commands. Values
// come from defaults, an optional TOML file, LASR_* environment variables
// and finally command-line flags, each layer overriding the last.
package config

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mstoykov/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/lasr/errors"
)

// DefaultFile is the config file looked up in the working directory when
// no path is given.
const DefaultFile = "lasr.toml"

const (
	TimerLocal     = "local"
	TimerLiveSplit = "livesplit"

	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config is the complete runtime configuration.
type Config struct {
	Timer            string        `toml:"timer" envconfig:"LASR_TIMER"`
	LiveSplitAddr    string        `toml:"livesplit_addr" envconfig:"LASR_LIVESPLIT_ADDR"`
	Journal          string        `toml:"journal" envconfig:"LASR_JOURNAL"`
	LogLevel         string        `toml:"log_level" envconfig:"LASR_LOG_LEVEL"`
	LogFormat        string        `toml:"log_format" envconfig:"LASR_LOG_FORMAT"`
	TickRate         float64       `toml:"tick_rate" envconfig:"LASR_TICK_RATE"`
	LiveSplitTimeout time.Duration `toml:"livesplit_timeout" envconfig:"LASR_LIVESPLIT_TIMEOUT"`
	Segments         int           `toml:"segments" envconfig:"LASR_SEGMENTS"`
	Interactive      bool          `toml:"interactive" envconfig:"LASR_INTERACTIVE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Timer:            TimerLocal,
		LiveSplitAddr:    "localhost:16834",
		LogLevel:         "info",
		LogFormat:        FormatAuto,
		TickRate:         120,
		LiveSplitTimeout: 2 * time.Second,
	}
}

// Load returns the defaults overlaid with the TOML file at path. An empty
// path loads DefaultFile when it exists. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return cfg, nil
		}
		path = DefaultFile
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path).Cause(err).Detail("decode config").Build()
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path).Detail("unknown keys: %s", strings.Join(keys, ", ")).Build()
	}
	return cfg, nil
}

// ApplyEnv overrides fields from LASR_* variables. lookup defaults to
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := envconfig.Process("", c, lookup); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Cause(err).Detail("environment").Build()
	}
	return nil
}

// Validate checks field ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(field).Detail(format, args...).Build())
	}
	if !slices.Contains([]string{TimerLocal, TimerLiveSplit}, c.Timer) {
		invalid("timer", "must be %q or %q, got %q", TimerLocal, TimerLiveSplit, c.Timer)
	}
	if c.Timer == TimerLiveSplit && c.LiveSplitAddr == "" {
		invalid("livesplit_addr", "required for the livesplit timer")
	}
	if c.TickRate <= 0 || c.TickRate > 10000 {
		invalid("tick_rate", "must be in (0, 10000], got %v", c.TickRate)
	}
	if c.LiveSplitTimeout < 0 {
		invalid("livesplit_timeout", "must not be negative")
	}
	if c.Segments < 0 {
		invalid("segments", "must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		invalid("log_level", "unknown level %q", c.LogLevel)
	}
	if !slices.Contains([]string{FormatAuto, FormatConsole, FormatJSON}, c.LogFormat) {
		invalid("log_format", "must be auto, console or json, got %q", c.LogFormat)
	}
	return errors.Join(errs...)
}

// BuildLogger returns a zap logger writing to stderr. The auto format
// picks console output for terminals and JSON otherwise.
func (c Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log_level").Cause(err).Build()
	}

	format := c.LogFormat
	if format == FormatAuto || format == "" {
		format = FormatJSON
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = FormatConsole
		}
	}

	zc := zap.NewProductionConfig()
	if format == FormatConsole {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
