package config

import (
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type IngestConfig struct {
	TempDir        string `mapstructure:"temp_dir"`
	ChunkSize      int    `mapstructure:"chunk_size"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

type WorkerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	DispatchGrace time.Duration `mapstructure:"dispatch_grace"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
}

type Config struct {
	DatabaseURL string         `mapstructure:"database_url"`
	ServerPort  string         `mapstructure:"server_port"`
	JWTSecret   string         `mapstructure:"jwt_secret"`
	Ingest      IngestConfig   `mapstructure:"ingest"`
	Worker      WorkerConfig   `mapstructure:"worker"`
	Temporal    TemporalConfig `mapstructure:"temporal"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.Ingest.TempDir == "" {
		config.Ingest.TempDir = os.TempDir()
	}
	if config.Ingest.ChunkSize <= 0 {
		config.Ingest.ChunkSize = 1000
	}
	if config.Ingest.MaxUploadBytes <= 0 {
		config.Ingest.MaxUploadBytes = 100 << 20 // 100 MiB
	}

	if config.Worker.PollInterval <= 0 {
		config.Worker.PollInterval = 30 * time.Second
	}
	if config.Worker.DispatchGrace <= 0 {
		config.Worker.DispatchGrace = 2 * time.Minute
	}

	if config.Temporal.HostPort == "" {
		config.Temporal.HostPort = "localhost:7233"
	}
	if config.Temporal.Namespace == "" {
		config.Temporal.Namespace = "default"
	}

	return &config
}
