// Package config loads the server and CLI configuration from defaults, an
// optional YAML file, PODOMETRE_* environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/Podometre/pkg/logger"
	"github.com/himanishpuri/Podometre/pkg/podometre"
	"github.com/himanishpuri/Podometre/pkg/podometre/cadence"
	"github.com/himanishpuri/Podometre/pkg/podometre/session"
	"github.com/himanishpuri/Podometre/pkg/podometre/signal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "PODOMETRE"
	FileName  = "podometre"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Estimator EstimatorConfig `mapstructure:"estimator" yaml:"estimator"`
	Sessions  SessionsConfig  `mapstructure:"sessions" yaml:"sessions"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	CORSOrigin      string        `mapstructure:"cors_origin" yaml:"cors_origin"`
}

type EstimatorConfig struct {
	SampleRate  int          `mapstructure:"sample_rate" yaml:"sample_rate"`
	WindowSize  int          `mapstructure:"window_size" yaml:"window_size"`
	Band        cadence.Band `mapstructure:"band" yaml:"band"`
	ResetPolicy string       `mapstructure:"reset_policy" yaml:"reset_policy"`
	ElapsedMode string       `mapstructure:"elapsed_mode" yaml:"elapsed_mode"`
}

type SessionsConfig struct {
	Max int `mapstructure:"max" yaml:"max"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Color bool   `mapstructure:"color" yaml:"color"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"sample-rate":  "estimator.sample_rate",
	"window-size":  "estimator.window_size",
	"min-hz":       "estimator.band.min_hz",
	"max-hz":       "estimator.band.max_hz",
	"reset-policy": "estimator.reset_policy",
	"elapsed-mode": "estimator.elapsed_mode",
	"max-sessions": "sessions.max",
	"history":      "history.enabled",
	"history-dsn":  "history.dsn",
	"log-level":    "log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", int64(8<<20))
	v.SetDefault("server.cors_origin", "*")

	v.SetDefault("estimator.sample_rate", 100)
	v.SetDefault("estimator.window_size", 1024)
	v.SetDefault("estimator.band.min_hz", cadence.DefaultBand.MinHz)
	v.SetDefault("estimator.band.max_hz", cadence.DefaultBand.MaxHz)
	v.SetDefault("estimator.reset_policy", string(signal.PolicyReset))
	v.SetDefault("estimator.elapsed_mode", string(session.ElapsedSupplied))

	v.SetDefault("sessions.max", 10000)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", ":memory:")

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.color", true)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("", nil)
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}

// Load builds the configuration. configFile may be empty, in which case the
// usual locations are searched and a missing file is not an error. flags
// may be nil; only flags that were set override the other sources.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	return cfg, nil
}

func searchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "podometre"))
	}
	return append(paths, "/etc/podometre")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	if err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// Validate checks the configuration. Estimator errors wrap podometre.ErrConfig.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout cannot be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}
	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return c.params().Validate()
}

func (c *Config) params() session.Params {
	return session.Params{
		SampleRate:  c.Estimator.SampleRate,
		WindowSize:  c.Estimator.WindowSize,
		Band:        c.Estimator.Band,
		Policy:      signal.ResetPolicy(strings.ToLower(c.Estimator.ResetPolicy)),
		ElapsedMode: session.ElapsedMode(strings.ToLower(c.Estimator.ElapsedMode)),
	}
}

// ServiceOptions translates the configuration into service options.
func (c *Config) ServiceOptions(log podometre.Logger) []podometre.Option {
	p := c.params()
	opts := []podometre.Option{
		podometre.WithSampleRate(p.SampleRate),
		podometre.WithWindowSize(p.WindowSize),
		podometre.WithBand(p.Band),
		podometre.WithResetPolicy(p.Policy),
		podometre.WithElapsedMode(p.ElapsedMode),
		podometre.WithMaxSessions(c.Sessions.Max),
	}
	if log != nil {
		opts = append(opts, podometre.WithLogger(log))
	}
	if c.History.Enabled {
		opts = append(opts, podometre.WithHistoryDSN(c.History.DSN))
	} else {
		opts = append(opts, podometre.WithoutHistory())
	}
	return opts
}

// Logger builds a logger honoring the log section. Colors are dropped when
// w is a file that is not a terminal.
func (c *Config) Logger(w io.Writer) *logger.Logger {
	lc := logger.DefaultConfig()
	if level, ok := logger.ParseLevel(c.Log.Level); ok {
		lc.Level = level
	}
	lc.Colorize = c.Log.Color
	if w != nil {
		lc.Output = w
	}
	if f, ok := lc.Output.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		lc.Colorize = false
	}
	return logger.New(lc)
}

// WriteYAML dumps the effective configuration.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
