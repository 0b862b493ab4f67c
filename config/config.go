package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	IngestAddr     string `mapstructure:"INGEST_ADDR"`
	ManagementAddr string `mapstructure:"MANAGEMENT_ADDR"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	OriginsFile string `mapstructure:"ORIGINS_FILE"`
	AlertFrom   string `mapstructure:"ALERT_FROM"`

	RetrySweepIntervalSeconds int `mapstructure:"RETRY_SWEEP_INTERVAL_SECONDS"`
	RetryBatchSize            int `mapstructure:"RETRY_BATCH_SIZE"`
	BackoffBaseMs             int `mapstructure:"BACKOFF_BASE_MS"`
	BackoffMaxMs              int `mapstructure:"BACKOFF_MAX_MS"`

	CacheRefreshIntervalSeconds int `mapstructure:"CACHE_REFRESH_INTERVAL_SECONDS"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// register every key with a default so AutomaticEnv values survive Unmarshal
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("ORIGINS_FILE", "")
	viper.SetDefault("INGEST_ADDR", ":8080")
	viper.SetDefault("MANAGEMENT_ADDR", ":8443")
	viper.SetDefault("ALERT_FROM", "relay@localhost")
	viper.SetDefault("RETRY_SWEEP_INTERVAL_SECONDS", 5)
	viper.SetDefault("RETRY_BATCH_SIZE", 50)
	viper.SetDefault("BACKOFF_BASE_MS", 1000)
	viper.SetDefault("BACKOFF_MAX_MS", 1800000)
	viper.SetDefault("CACHE_REFRESH_INTERVAL_SECONDS", 30)

	err := viper.ReadInConfig()
	if err != nil {
		// the config file is optional; env vars and defaults still apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	err = viper.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return &config, nil
}
