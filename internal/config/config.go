package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Host       string
		Port       int
		User       string
		Password   string
		Name       string
		SSLMode    string
		Migrations string
	}
	GitHub struct {
		Token         string
		WebhookSecret string `mapstructure:"webhook_secret"`
	}
	Sync     SyncConfig
	Defaults DefaultsConfig
	Server   ServerConfig
}

// SyncConfig controls the background sync machinery. Interval is the
// fallback cadence used when a repository's own update config carries a
// non-positive interval.
type SyncConfig struct {
	Interval time.Duration
	Workers  int
}

// DefaultsConfig seeds the per-repository GFI config created at onboarding.
type DefaultsConfig struct {
	NewcomerThreshold int     `mapstructure:"newcomer_threshold"`
	GFIThreshold      float64 `mapstructure:"gfi_threshold"`
	NeedComment       bool    `mapstructure:"need_comment"`
	IssueTag          string  `mapstructure:"issue_tag"`
}

type ServerConfig struct {
	Port int
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variables
	v.SetEnvPrefix("GFI_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "gfi_bot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations", "migrations")

	v.SetDefault("sync.interval", "24h")
	v.SetDefault("sync.workers", 5)

	v.SetDefault("defaults.newcomer_threshold", 3)
	v.SetDefault("defaults.gfi_threshold", 0.5)
	v.SetDefault("defaults.need_comment", true)
	v.SetDefault("defaults.issue_tag", "good first issue")
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if c.GitHub.Token == "" {
		return fmt.Errorf("GitHub token is required")
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("invalid sync interval: %v", c.Sync.Interval)
	}
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("invalid sync worker count: %d", c.Sync.Workers)
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
