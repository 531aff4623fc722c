package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	EnvironmentURL string              `mapstructure:"environment_url"`
	Solution       string              `mapstructure:"solution"`
	ProjectName    string              `mapstructure:"project_name"`
	OutputFolder   string              `mapstructure:"output_folder"`
	CacheDir       string              `mapstructure:"cache_dir"`
	AccessToken    string              `mapstructure:"access_token"`
	Fetch          FetchConfig         `mapstructure:"fetch"`
	SelectionRules []SelectionRuleSpec `mapstructure:"selection_rules"`
}

type FetchConfig struct {
	Concurrency    int `mapstructure:"concurrency"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// SelectionRuleSpec is an uncompiled attribute pre-selection rule. Table is
// a logical name or "*"; Expression is evaluated against each fetched
// attribute when no saved selection exists for the table.
type SelectionRuleSpec struct {
	Table      string `mapstructure:"table"`
	Expression string `mapstructure:"expression"`
}

// Timeout returns the per-call timeout for remote catalog requests.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// SettingsPath returns the location of the durable preferences record.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.CacheDir, "settings.json")
}

// CachePath returns the location of the durable metadata cache record.
func (c *Config) CachePath() string {
	return filepath.Join(c.CacheDir, "metadata_cache.json")
}

func Load() (*Config, error) {
	viper.SetConfigName("dvexport")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".dvexport"))
	}

	viper.SetDefault("cache_dir", defaultCacheDir())
	viper.SetDefault("fetch.concurrency", 5)
	viper.SetDefault("fetch.timeout_seconds", 30)

	viper.SetEnvPrefix("dvexport")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// The login flow hands the token over via the conventional variable.
	_ = viper.BindEnv("access_token", "DATAVERSE_TOKEN", "DVEXPORT_ACCESS_TOKEN")
	_ = viper.BindEnv("environment_url", "DATAVERSE_URL", "DVEXPORT_ENVIRONMENT_URL")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine; flags and env cover the required keys.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Fetch.Concurrency <= 0 {
		cfg.Fetch.Concurrency = 5
	}
	if cfg.Fetch.TimeoutSeconds <= 0 {
		cfg.Fetch.TimeoutSeconds = 30
	}

	return &cfg, nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dvexport"
	}
	return filepath.Join(home, ".dvexport")
}
