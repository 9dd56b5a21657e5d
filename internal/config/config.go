// Package config loads the settings which are not specific to an analysis:
// the GitHub access, the caches, the storage and the logging.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables, e.g. CITHEATER_GITHUB_TOKEN.
const EnvPrefix = "CITHEATER"

// Config is the complete configuration.
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"`
	Workers int           `mapstructure:"workers"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GitHubConfig sets how to talk to GitHub.
type GitHubConfig struct {
	Token      string        `mapstructure:"token"`
	APIURL     string        `mapstructure:"api_url"`
	GraphQLURL string        `mapstructure:"graphql_url"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PerPage    int           `mapstructure:"per_page"`
}

// CacheConfig sets where the HTTP responses are cached.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
	// HTTP enables the persistent ETag cache in Dir. The cache lives in memory otherwise.
	HTTP bool `mapstructure:"http"`
}

// StoreConfig sets where the runs are saved.
type StoreConfig struct {
	// DSN is a postgres:// URL or an SQLite file path. Empty disables saving.
	DSN string `mapstructure:"dsn"`
}

// LoggingConfig sets the logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration before any file, variable or flag is applied.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIURL:     github.DefaultAPIURL,
			GraphQLURL: github.DefaultGraphQLURL,
			MaxRetries: github.DefaultMaxRetries,
			Timeout:    github.DefaultTimeout,
			PerPage:    github.DefaultPerPage,
		},
		Workers: 4,
		Cache:   CacheConfig{Dir: "~/.cache/citheater"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// keys lists every setting; each can be overridden with CITHEATER_<KEY>.
var keys = []string{
	"github.token", "github.api_url", "github.graphql_url", "github.max_retries",
	"github.timeout", "github.per_page",
	"workers",
	"cache.dir", "cache.http",
	"store.dsn",
	"logging.level", "logging.format",
}

// Loader reads the configuration with the precedence
// defaults < config file < .env file < environment < flags.
type Loader struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New(), envFile: ".env"}
}

// SetConfigFile sets an explicit config file path. A missing explicit file is an error.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// SetEnvFile sets the dotenv file path; "" disables it. Missing files are ignored.
func (l *Loader) SetEnvFile(path string) {
	l.envFile = path
}

// BindFlags makes the given command line flags override the keys. The map goes from the key
// to the flag name, e.g. "workers" -> "workers". Flags which were not changed are ignored.
func (l *Loader) BindFlags(flags *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return errors.Errorf("no such flag: --%s", name)
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "binding --%s", name)
		}
	}
	return nil
}

// ConfigFileUsed returns the config file that was loaded, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load reads the configuration.
func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		// the variables which are already set take precedence
		if err := godotenv.Load(l.envFile); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "failed to load %s", l.envFile)
		}
	}
	cfg := Default()
	l.setup(cfg)
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}
	if err := l.v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || l.configFile != "" {
			return nil, errors.Wrap(err, "failed to read the config file")
		}
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode the configuration")
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) setup(cfg *Config) {
	v := l.v
	v.SetConfigName("citheater")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, "citheater"))
	}
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "citheater"))
	}

	v.SetDefault("github.token", cfg.GitHub.Token)
	v.SetDefault("github.api_url", cfg.GitHub.APIURL)
	v.SetDefault("github.graphql_url", cfg.GitHub.GraphQLURL)
	v.SetDefault("github.max_retries", cfg.GitHub.MaxRetries)
	v.SetDefault("github.timeout", cfg.GitHub.Timeout)
	v.SetDefault("github.per_page", cfg.GitHub.PerPage)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.http", cfg.Cache.HTTP)
	v.SetDefault("store.dsn", cfg.Store.DSN)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Unmarshal sees only the explicitly bound variables
	for _, key := range keys {
		env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if key == "github.token" {
			_ = v.BindEnv(key, env, "GITHUB_TOKEN")
			continue
		}
		_ = v.BindEnv(key, env)
	}
	v.AutomaticEnv()
}

func (cfg *Config) expandPaths() error {
	dir, err := homedir.Expand(cfg.Cache.Dir)
	if err != nil {
		return errors.Wrapf(err, "invalid cache.dir %s", cfg.Cache.Dir)
	}
	cfg.Cache.Dir = dir
	return nil
}

// Validate checks the values.
func (cfg *Config) Validate() error {
	if cfg.Workers < 1 {
		return errors.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.GitHub.PerPage < 1 || cfg.GitHub.PerPage > github.DefaultPerPage {
		return errors.Errorf("github.per_page must be between 1 and %d, got %d",
			github.DefaultPerPage, cfg.GitHub.PerPage)
	}
	if cfg.GitHub.Timeout < 0 {
		return errors.Errorf("github.timeout must not be negative, got %s", cfg.GitHub.Timeout)
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return errors.Errorf("logging.format must be console or json, got %q", cfg.Logging.Format)
	}
	if cfg.Cache.HTTP && cfg.Cache.Dir == "" {
		return errors.New("cache.http requires cache.dir")
	}
	return nil
}

// HTTPCachePath is the SQLite file of the persistent HTTP cache.
func (cfg *Config) HTTPCachePath() string {
	return filepath.Join(cfg.Cache.Dir, "http-cache.db")
}

// LogConfig converts the logging settings for core.NewLoggerWithConfig().
func (cfg *Config) LogConfig() core.LogConfig {
	return core.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
}

// ClientOptions converts the GitHub settings for github.NewClient().
func (cfg *Config) ClientOptions(cache github.Cache, logger core.Logger) github.Options {
	maxRetries := cfg.GitHub.MaxRetries
	if maxRetries == 0 {
		// zero is "use the default" for github.Options
		maxRetries = -1
	}
	return github.Options{
		Token:      cfg.GitHub.Token,
		APIURL:     cfg.GitHub.APIURL,
		GraphQLURL: cfg.GitHub.GraphQLURL,
		PerPage:    cfg.GitHub.PerPage,
		MaxRetries: maxRetries,
		Timeout:    cfg.GitHub.Timeout,
		Cache:      cache,
		Logger:     logger,
	}
}
