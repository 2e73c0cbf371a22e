// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override, e.g.
// VULNTRACK_DATABASE_URL.
const EnvPrefix = "VULNTRACK"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Importer() ImporterConfig
	Export() ExportConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	ImporterCfg ImporterConfig `mapstructure:"importer" yaml:"importer"`
	ExportCfg   ExportConfig   `mapstructure:"export" yaml:"export"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Importer() ImporterConfig { return c.ImporterCfg }
func (c *Config) Export() ExportConfig     { return c.ExportCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	MaxConns       int32         `mapstructure:"max_conns" yaml:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// ImporterConfig bounds what the importer accepts.
type ImporterConfig struct {
	// MaxDocumentBytes caps a single report document. Zero disables the check.
	MaxDocumentBytes int64 `mapstructure:"max_document_bytes" yaml:"max_document_bytes"`
}

// ExportConfig sets the defaults used when writing documents back out.
type ExportConfig struct {
	IncludeStatus bool   `mapstructure:"include_status" yaml:"include_status"`
	Indent        string `mapstructure:"indent" yaml:"indent"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vulntrack")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.connect_timeout", "10s")

	// -- Importer --
	v.SetDefault("importer.max_document_bytes", 64<<20)

	// -- Export --
	v.SetDefault("export.include_status", true)
	v.SetDefault("export.indent", "  ")
}

// BindEnv wires environment overrides into v. Nested keys map to upper case
// names joined by underscores under EnvPrefix.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The database URL usually carries credentials and is commonly supplied
	// without the prefix as well.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	BindEnv(v)

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. The database URL is
// not required here because commands such as version never connect.
func (c *Config) Validate() error {
	if c.DatabaseCfg.MaxConns <= 0 {
		return fmt.Errorf("database.max_conns must be a positive integer")
	}
	if c.DatabaseCfg.ConnectTimeout < 0 {
		return fmt.Errorf("database.connect_timeout must not be negative")
	}
	if c.ImporterCfg.MaxDocumentBytes < 0 {
		return fmt.Errorf("importer.max_document_bytes must not be negative")
	}
	if strings.Trim(c.ExportCfg.Indent, " \t") != "" {
		return fmt.Errorf("export.indent may only contain spaces and tabs")
	}
	switch c.LoggerCfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be either 'console' or 'json'")
	}
	return nil
}

// RequireURL reports an error when no database URL is configured.
func (d DatabaseConfig) RequireURL() error {
	if d.URL == "" {
		return fmt.Errorf("database.url is required (set it in the config file or via %s_DATABASE_URL)", EnvPrefix)
	}
	return nil
}
