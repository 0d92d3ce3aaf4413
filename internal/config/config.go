// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jacentio/ridestore/store"
)

// Config holds all configuration for the rides service.
type Config struct {
	Store    store.Config
	LogLevel slog.Level
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory if one exists. Variables already set in the
// environment take precedence over the .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	defaults := store.DefaultConfig()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("RIDES_TABLE", defaults.Table)
	v.SetDefault("RIDES_ENTITY", defaults.Entity)
	v.SetDefault("RIDES_PAGE_SIZE", defaults.PageSize)
	v.SetDefault("RIDES_QUERY_PARTITION", defaults.QueryPartition)
	v.SetDefault("RIDES_MAX_BATCH_ITEMS", defaults.MaxBatchItems)
	v.SetDefault("RIDES_MAX_BATCH_RETRIES", defaults.MaxBatchRetries)
	v.SetDefault("LOG_LEVEL", "info")

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(v.GetString("LOG_LEVEL")))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Store: store.Config{
			Table:           v.GetString("RIDES_TABLE"),
			Entity:          v.GetString("RIDES_ENTITY"),
			PageSize:        v.GetInt32("RIDES_PAGE_SIZE"),
			QueryPartition:  v.GetBool("RIDES_QUERY_PARTITION"),
			MaxBatchItems:   v.GetInt("RIDES_MAX_BATCH_ITEMS"),
			MaxBatchRetries: v.GetInt("RIDES_MAX_BATCH_RETRIES"),
			Connection: store.Connection{
				Region:          v.GetString("AWS_REGION"),
				Endpoint:        v.GetString("DYNAMODB_ENDPOINT"),
				Profile:         v.GetString("AWS_PROFILE"),
				AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			},
		},
		LogLevel: level,
	}

	return cfg, nil
}
