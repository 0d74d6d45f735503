package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/Podometre/pkg/podometre"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "podometre.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 100, cfg.Estimator.SampleRate)
	assert.Equal(t, 1024, cfg.Estimator.WindowSize)
	assert.Equal(t, 1.0, cfg.Estimator.Band.MinHz)
	assert.Equal(t, 3.0, cfg.Estimator.Band.MaxHz)
	assert.Equal(t, "reset", cfg.Estimator.ResetPolicy)
	assert.Equal(t, "supplied", cfg.Estimator.ElapsedMode)
	assert.True(t, cfg.History.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
  shutdown_timeout: 3s
estimator:
  sample_rate: 50
  window_size: 512
  band:
    min_hz: 0.5
    max_hz: 0
  reset_policy: sliding
history:
  enabled: false
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 50, cfg.Estimator.SampleRate)
	assert.Equal(t, 512, cfg.Estimator.WindowSize)
	assert.True(t, cfg.Estimator.Band.Unbounded())
	assert.Equal(t, "sliding", cfg.Estimator.ResetPolicy)
	assert.False(t, cfg.History.Enabled)
	// untouched keys keep their defaults
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "estimator:\n  window_size: 512\n")
	t.Setenv("PODOMETRE_ESTIMATOR_WINDOW_SIZE", "2048")
	t.Setenv("PODOMETRE_LOG_LEVEL", "debug")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Estimator.WindowSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestFlagsOverrideEverything(t *testing.T) {
	path := writeConfig(t, "estimator:\n  sample_rate: 50\n")
	t.Setenv("PODOMETRE_ESTIMATOR_SAMPLE_RATE", "60")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("sample-rate", 100, "")
	flags.Int("window-size", 1024, "")
	flags.String("reset-policy", "reset", "")
	require.NoError(t, flags.Parse([]string{"--sample-rate=200", "--reset-policy=sliding"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Estimator.SampleRate)
	assert.Equal(t, "sliding", cfg.Estimator.ResetPolicy)
	// unset flags do not shadow the defaults
	assert.Equal(t, 1024, cfg.Estimator.WindowSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		isCfg  bool
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, false},
		{"zero timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"window not power of two", func(c *Config) { c.Estimator.WindowSize = 1000 }, true},
		{"zero rate", func(c *Config) { c.Estimator.SampleRate = 0 }, true},
		{"inverted band", func(c *Config) { c.Estimator.Band.MinHz = 5 }, true},
		{"unknown policy", func(c *Config) { c.Estimator.ResetPolicy = "hybrid" }, true},
		{"unknown elapsed mode", func(c *Config) { c.Estimator.ElapsedMode = "guess" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.isCfg, errors.Is(err, podometre.ErrConfig))
		})
	}
}

func TestServiceOptions(t *testing.T) {
	cfg := Default()
	cfg.Estimator.WindowSize = 256
	cfg.History.Enabled = false

	svc, err := podometre.NewService(cfg.ServiceOptions(cfg.Logger(&bytes.Buffer{}))...)
	require.NoError(t, err)
	defer svc.Close()

	got := svc.Settings()
	assert.Equal(t, 256, got.WindowSize)
	assert.Equal(t, 100, got.SampleRate)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, stats.HistoryEnabled)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))
	assert.Contains(t, buf.String(), "window_size: 1024")

	var back Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, *cfg, back)
}
