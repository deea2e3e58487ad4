package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-orchestrator/flags"
)

// parseConfig runs NewConfig inside a throwaway cli app.
func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg *Config
		err error
	)
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, err = NewConfig(ctx, log.NewLogger(log.DiscardHandler()))
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"op-orchestrator"}, args...)))
	return cfg, err
}

func TestNewConfig(t *testing.T) {
	cfg, err := parseConfig(t,
		"--catalog", "testdata/catalog.yaml",
		"--suites", "green",
		"--groups", "smoke",
		"--loops", "2",
		"--stop-on-fail",
		"--max-parallel", "4",
		"--api.port", "9090",
	)
	require.NoError(t, err)

	abs, _ := filepath.Abs("testdata/catalog.yaml")
	assert.Equal(t, abs, cfg.CatalogPath)
	assert.Equal(t, []string{"green"}, cfg.Suites)
	assert.Equal(t, []string{"smoke"}, cfg.Groups)
	assert.Equal(t, 2, cfg.Loops)
	assert.True(t, cfg.StopOnFail)
	assert.Equal(t, 4, cfg.MaxParallel)
	assert.True(t, cfg.RunOnce)
	assert.True(t, filepath.IsAbs(cfg.LogDir))
	assert.Equal(t, "logs", filepath.Base(cfg.LogDir))
	assert.Equal(t, 9090, cfg.Service.APIPort)
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"negative loops", []string{"--catalog", "c.yaml", "--loops", "-1"}, "loops must not be negative"},
		{"negative parallel", []string{"--catalog", "c.yaml", "--max-parallel", "-2"}, "max-parallel must not be negative"},
		{"lease without ttl", []string{"--catalog", "c.yaml", "--redis-url", "redis://localhost:6379", "--lease-ttl", "0s"}, "lease-ttl must be positive"},
		{"missing profile", []string{"--catalog", "c.yaml", "--profile", "testdata/nope.toml"}, "failed to decode profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewConfig_Profile(t *testing.T) {
	t.Run("fills unset flags", func(t *testing.T) {
		cfg, err := parseConfig(t, "--catalog", "c.yaml", "--profile", "testdata/profile.toml")
		require.NoError(t, err)
		assert.Equal(t, []string{"green"}, cfg.Suites)
		assert.Equal(t, 3, cfg.Loops)
		assert.Equal(t, 2, cfg.MaxParallel)
		assert.Equal(t, 45*time.Second, cfg.DefaultTimeout)
		assert.Equal(t, 10*time.Minute, cfg.RunInterval)
		assert.False(t, cfg.RunOnce)
		assert.False(t, cfg.StopOnFail)
	})

	t.Run("flags win", func(t *testing.T) {
		cfg, err := parseConfig(t, "--catalog", "c.yaml", "--profile", "testdata/profile.toml", "--loops", "1", "--run-interval", "0s")
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Loops)
		assert.True(t, cfg.RunOnce)
		assert.Equal(t, 2, cfg.MaxParallel)
	})
}

func TestLoadProfile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("loops = 1\nretries = 3\n"), 0o644))
	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
	assert.Contains(t, err.Error(), "retries")
}

func TestLoadProfile_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`run_interval = "soon"`), 0o644))
	_, err := LoadProfile(path)
	require.Error(t, err)
}
