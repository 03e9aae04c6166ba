package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Registry  RegistryConfig  `yaml:"registry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RateLimitConfig configures the global token bucket
type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// MinIOConfig holds configuration for the backup bucket
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key" json:"access_key"`
	SecretAccessKey string `yaml:"secret_key" json:"secret_key"`
	BucketName      string `yaml:"bucket" json:"bucket"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
	ConnectOnStart  bool   `yaml:"connect_on_start" json:"-"`
}

// RegistryConfig configures validation policy and the initial records
type RegistryConfig struct {
	StrictDates    bool       `yaml:"strict_dates"`
	VerifyChecksum bool       `yaml:"verify_checksum"`
	SeedDefaults   bool       `yaml:"seed_defaults"`
	Seed           []SeedUser `yaml:"seed"`
}

// SeedUser is a seed record; BirthDate is in YYYY-MM-DD form
type SeedUser struct {
	NationalID string `yaml:"national_id"`
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	BirthDate  string `yaml:"birth_date"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file or env overrides exist
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RPS:   1000,
			Burst: 5000,
		},
		MinIO: MinIOConfig{
			Endpoint:        "localhost:9000",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			BucketName:      "users-backup",
			ConnectOnStart:  true,
		},
		Registry: RegistryConfig{
			StrictDates:  true,
			SeedDefaults: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment overrides
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.MinIO.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.MinIO.AccessKeyID = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.MinIO.SecretAccessKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		c.MinIO.BucketName = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		c.MinIO.UseSSL = v == "true"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	var err error
	if c.RateLimit.RPS, err = envInt("RATE_LIMIT_RPS", c.RateLimit.RPS); err != nil {
		return err
	}
	if c.RateLimit.Burst, err = envInt("RATE_LIMIT_BURST", c.RateLimit.Burst); err != nil {
		return err
	}
	return nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Validate rejects configurations the service cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.RateLimit.RPS <= 0 {
		errs = append(errs, errors.New("rate_limit.rps must be positive"))
	}
	if c.RateLimit.Burst < c.RateLimit.RPS {
		errs = append(errs, errors.New("rate_limit.burst must be at least rate_limit.rps"))
	}
	if c.MinIO.BucketName == "" {
		errs = append(errs, errors.New("minio.bucket is required"))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	return errors.Join(errs...)
}
