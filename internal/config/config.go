package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	// Path to the SQLite file holding the events table.
	Path string `mapstructure:"path"`
}

type IngestConfig struct {
	// MaxRequestBytes caps the POST /events request body read by the server.
	MaxRequestBytes int64 `mapstructure:"max_request_bytes"`

	// RateLimitRPS limits event ingestion; 0 disables the limiter.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type StreamConfig struct {
	// BufferSize is the per-observer channel depth. A full channel drops
	// frames rather than blocking ingestion.
	BufferSize int `mapstructure:"buffer_size"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. WIRETRACE_DATABASE_PATH
	viper.SetEnvPrefix("wiretrace")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "9432")
	viper.SetDefault("database.path", "./data/wiretrace.db")
	viper.SetDefault("ingest.max_request_bytes", 10*1024*1024)
	viper.SetDefault("ingest.rate_limit_rps", 0)
	viper.SetDefault("ingest.rate_limit_burst", 100)
	viper.SetDefault("stream.buffer_size", 64)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
