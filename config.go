package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"libcat/internal/catalog"
	"libcat/internal/dblib"
)

// Config is the merged result of defaults, config.yaml, .env, LIBCAT_*
// environment variables and command-line flags, later sources winning.
type Config struct {
	Driver   string `yaml:"driver"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	URL      string `yaml:"url"`

	Catalog   string `yaml:"catalog"`
	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`
	SentryDSN string `yaml:"sentry_dsn"`
}

func defaultConfig() Config {
	return Config{
		Database: "library",
		Host:     "localhost",
		LogLevel: "info",
	}
}

// envKeys maps environment variables onto config fields.
var envKeys = []struct {
	name  string
	field func(*Config) *string
}{
	{"LIBCAT_DB_DRIVER", func(c *Config) *string { return &c.Driver }},
	{"LIBCAT_DB_NAME", func(c *Config) *string { return &c.Database }},
	{"LIBCAT_DB_HOST", func(c *Config) *string { return &c.Host }},
	{"LIBCAT_DB_PORT", func(c *Config) *string { return &c.Port }},
	{"LIBCAT_DB_USER", func(c *Config) *string { return &c.Username }},
	{"LIBCAT_DB_PASSWORD", func(c *Config) *string { return &c.Password }},
	{"LIBCAT_DB_SSLMODE", func(c *Config) *string { return &c.SSLMode }},
	{"LIBCAT_DATABASE_URL", func(c *Config) *string { return &c.URL }},
	{"LIBCAT_CATALOG", func(c *Config) *string { return &c.Catalog }},
	{"LIBCAT_LOG_FILE", func(c *Config) *string { return &c.LogFile }},
	{"LIBCAT_LOG_LEVEL", func(c *Config) *string { return &c.LogLevel }},
	{"LIBCAT_SENTRY_DSN", func(c *Config) *string { return &c.SentryDSN }},
}

// flagKeys maps command-line flags onto config fields.
var flagKeys = []struct {
	name  string
	field func(*Config) *string
}{
	{"driver", func(c *Config) *string { return &c.Driver }},
	{"database", func(c *Config) *string { return &c.Database }},
	{"host", func(c *Config) *string { return &c.Host }},
	{"port", func(c *Config) *string { return &c.Port }},
	{"username", func(c *Config) *string { return &c.Username }},
	{"password", func(c *Config) *string { return &c.Password }},
	{"sslmode", func(c *Config) *string { return &c.SSLMode }},
	{"url", func(c *Config) *string { return &c.URL }},
	{"catalog", func(c *Config) *string { return &c.Catalog }},
	{"log-level", func(c *Config) *string { return &c.LogLevel }},
}

// loadConfig reads the configuration. path selects the YAML file; when empty
// config.yaml in the config directory is used if it exists.
func loadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := configPath("config.yaml")
		if err != nil {
			return cfg, err
		}
		path = p
	}
	if err := cfg.mergeFile(path, explicit); err != nil {
		return cfg, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("could not load .env: %w", err)
	}
	cfg.mergeEnv(os.LookupEnv)

	if flags != nil {
		if err := cfg.mergeFlags(flags); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.validate()
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) {
	for _, k := range envKeys {
		if v, ok := lookup(k.name); ok && v != "" {
			*k.field(c) = v
		}
	}
}

// mergeFlags applies only the flags set on the command line so their
// defaults never mask the config file or environment.
func (c *Config) mergeFlags(flags *pflag.FlagSet) error {
	for _, k := range flagKeys {
		f := flags.Lookup(k.name)
		if f == nil || !f.Changed {
			continue
		}
		v, err := flags.GetString(k.name)
		if err != nil {
			return err
		}
		*k.field(c) = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.Driver != "" {
		if _, err := dblib.ParseDatabaseType(c.Driver); err != nil {
			return fmt.Errorf("invalid driver: %w", err)
		}
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

// Connection returns the gateway configuration.
func (c Config) Connection() dblib.ConnectionConfig {
	return dblib.ConnectionConfig{
		Driver:   strings.ToLower(c.Driver),
		Database: c.Database,
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		SSLMode:  c.SSLMode,
		URL:      c.URL,
	}
}

// LoadCatalog returns the configured catalog, or the built-in one.
func (c Config) LoadCatalog() (*catalog.Catalog, error) {
	if c.Catalog == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(c.Catalog)
}
