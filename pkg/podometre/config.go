package podometre

import (
	"github.com/himanishpuri/Podometre/pkg/podometre/cadence"
	"github.com/himanishpuri/Podometre/pkg/podometre/session"
	"github.com/himanishpuri/Podometre/pkg/podometre/signal"
	"github.com/himanishpuri/Podometre/pkg/podometre/storage"
)

// DefaultSessionID is used by legacy requests that omit a name.
const DefaultSessionID = "default"

type Config struct {
	SampleRate  int
	WindowSize  int
	Band        cadence.Band
	ResetPolicy signal.ResetPolicy
	ElapsedMode session.ElapsedMode
	MaxSessions int // <= 0 means unlimited
	HistoryDSN  string
	NoHistory   bool
	Logger      Logger
	History     HistoryStore
}

type Option func(*Config)

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithWindowSize(n int) Option {
	return func(c *Config) {
		c.WindowSize = n
	}
}

func WithBand(band cadence.Band) Option {
	return func(c *Config) {
		c.Band = band
	}
}

func WithResetPolicy(policy signal.ResetPolicy) Option {
	return func(c *Config) {
		c.ResetPolicy = policy
	}
}

func WithElapsedMode(mode session.ElapsedMode) Option {
	return func(c *Config) {
		c.ElapsedMode = mode
	}
}

func WithMaxSessions(n int) Option {
	return func(c *Config) {
		c.MaxSessions = n
	}
}

// WithHistoryDSN points the estimate history at a sqlite path. The default
// keeps it in memory.
func WithHistoryDSN(dsn string) Option {
	return func(c *Config) {
		c.HistoryDSN = dsn
	}
}

// WithoutHistory disables estimate recording entirely.
func WithoutHistory() Option {
	return func(c *Config) {
		c.NoHistory = true
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithHistory(store HistoryStore) Option {
	return func(c *Config) {
		c.History = store
	}
}

func defaultConfig() *Config {
	return &Config{
		SampleRate:  100,
		WindowSize:  1024,
		Band:        cadence.DefaultBand,
		ResetPolicy: signal.PolicyReset,
		ElapsedMode: session.ElapsedSupplied,
		MaxSessions: 10000,
		HistoryDSN:  storage.MemoryDSN,
	}
}

// params are the defaults applied to a newly created session.
func (c *Config) params() session.Params {
	return session.Params{
		SampleRate:  c.SampleRate,
		WindowSize:  c.WindowSize,
		Band:        c.Band,
		Policy:      c.ResetPolicy,
		ElapsedMode: c.ElapsedMode,
	}
}
