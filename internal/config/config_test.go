package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	os.Unsetenv("GITHUB_TOKEN")
	for _, key := range keys {
		name := "CITHEATER_" + envSuffix(key)
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func envSuffix(key string) string {
	result := []byte(key)
	for i, c := range result {
		switch {
		case c == '.':
			result[i] = '_'
		case c >= 'a' && c <= 'z':
			result[i] = c - 'a' + 'A'
		}
	}
	return string(result)
}

func newLoader(t *testing.T) *Loader {
	loader := NewLoader()
	loader.SetEnvFile("")
	loader.SetConfigFile("")
	// keep away from the configuration of the machine
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return loader
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := newLoader(t).Load()
	require.NoError(t, err)
	assert.Equal(t, github.DefaultAPIURL, cfg.GitHub.APIURL)
	assert.Equal(t, github.DefaultTimeout, cfg.GitHub.Timeout)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "", cfg.GitHub.Token)
	assert.False(t, cfg.Cache.HTTP)
	home, err := homedir.Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cache", "citheater"), cfg.Cache.Dir)
	assert.Equal(t, filepath.Join(cfg.Cache.Dir, "http-cache.db"), cfg.HTTPCachePath())
	assert.Equal(t, core.LogConfig{Level: "info", Format: "console"}, cfg.LogConfig())
}

func TestConfigFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "citheater.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
github:
  token: from-file
  timeout: 30s
  per_page: 50
workers: 8
cache:
  dir: /tmp/citheater-cache
  http: true
logging:
  format: json
`), 0644))
	loader := newLoader(t)
	loader.SetConfigFile(path)
	t.Setenv("CITHEATER_WORKERS", "2")
	t.Setenv("CITHEATER_STORE_DSN", "sqlite:/tmp/runs.db")
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, path, loader.ConfigFileUsed())
	assert.Equal(t, "from-file", cfg.GitHub.Token)
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 50, cfg.GitHub.PerPage)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "/tmp/citheater-cache", cfg.Cache.Dir)
	assert.True(t, cfg.Cache.HTTP)
	assert.Equal(t, "sqlite:/tmp/runs.db", cfg.Store.DSN)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestTokenFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "generic")
	cfg, err := newLoader(t).Load()
	require.NoError(t, err)
	assert.Equal(t, "generic", cfg.GitHub.Token)

	t.Setenv("CITHEATER_GITHUB_TOKEN", "specific")
	cfg, err = newLoader(t).Load()
	require.NoError(t, err)
	assert.Equal(t, "specific", cfg.GitHub.Token)
}

func TestEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CITHEATER_LOGGING_LEVEL=debug\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("CITHEATER_LOGGING_LEVEL") })
	loader := newLoader(t)
	loader.SetEnvFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	loader = newLoader(t)
	loader.SetEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	_, err = loader.Load()
	assert.NoError(t, err)
}

func TestFlagsOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("CITHEATER_WORKERS", "2")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	flags.String("store", "", "")
	loader := newLoader(t)
	require.NoError(t, loader.BindFlags(flags, map[string]string{"workers": "workers", "store.dsn": "store"}))
	cfg, err := loader.Load()
	require.NoError(t, err)
	// unchanged flags do not override
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "", cfg.Store.DSN)

	require.NoError(t, flags.Parse([]string{"--workers", "16", "--store", "runs.db"}))
	loader = newLoader(t)
	require.NoError(t, loader.BindFlags(flags, map[string]string{"workers": "workers", "store.dsn": "store"}))
	cfg, err = loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, "runs.db", cfg.Store.DSN)

	assert.Error(t, loader.BindFlags(flags, map[string]string{"workers": "missing"}))
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	loader := newLoader(t)
	loader.SetConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := loader.Load()
	assert.Error(t, err)

	t.Setenv("CITHEATER_WORKERS", "0")
	_, err = newLoader(t).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
	cfg = Default()
	cfg.GitHub.PerPage = 101
	assert.Error(t, cfg.Validate())
	cfg = Default()
	cfg.Cache = CacheConfig{HTTP: true}
	assert.Error(t, cfg.Validate())
}

func TestClientOptions(t *testing.T) {
	cfg := Default()
	cfg.GitHub.Token = "secret"
	cache := github.NewMemoryCache()
	logger := core.NewLogger()
	opts := cfg.ClientOptions(cache, logger)
	assert.Equal(t, "secret", opts.Token)
	assert.Equal(t, github.DefaultMaxRetries, opts.MaxRetries)
	assert.Equal(t, cache, opts.Cache)
	assert.Equal(t, logger, opts.Logger)
	cfg.GitHub.MaxRetries = 0
	assert.Equal(t, -1, cfg.ClientOptions(nil, logger).MaxRetries)
}
