package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Scheduler SchedulerConfig
	Slack     SlackConfig
	Hubspot   HubspotConfig
	Security  SecurityConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	RefreshSecret      string `mapstructure:"refresh_secret"`
	ExpiryHours        int    `mapstructure:"expiry_hours"`
	RefreshExpiryHours int    `mapstructure:"refresh_expiry_hours"`
}

type SchedulerConfig struct {
	CronSpec  string `mapstructure:"cron_spec"`
	BatchSize int    `mapstructure:"batch_size"`
}

type SlackConfig struct {
	APITimeout time.Duration `mapstructure:"api_timeout"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	RateBurst  int           `mapstructure:"rate_burst"`
	LookupTTL  time.Duration `mapstructure:"lookup_ttl"`
}

type HubspotConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
}

type SecurityConfig struct {
	// EncryptionKey is the 32-byte AES key protecting tokens at rest.
	EncryptionKey string `mapstructure:"encryption_key"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	viper.SetDefault("scheduler.cron_spec", "* * * * *")
	viper.SetDefault("scheduler.batch_size", 50)
	viper.SetDefault("slack.api_timeout", 15*time.Second)
	viper.SetDefault("slack.rate_per_sec", 1.0)
	viper.SetDefault("slack.rate_burst", 5)
	viper.SetDefault("slack.lookup_ttl", time.Hour)
	viper.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	viper.SetDefault("hubspot.api_timeout", 10*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// WorkerOverrides are 12-factor env overrides applied on top of the yaml
// config for the worker binary, which runs without a config volume in some
// deployments.
type WorkerOverrides struct {
	DatabaseHost string `envconfig:"DATABASE_HOST"`
	DatabasePort int    `envconfig:"DATABASE_PORT"`
	RedisURL     string `envconfig:"REDIS_URL"`
	CronSpec     string `envconfig:"SCHEDULER_CRON_SPEC"`
	BatchSize    int    `envconfig:"SCHEDULER_BATCH_SIZE"`
}

func LoadWorkerConfig() (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	var env WorkerOverrides
	if err := envconfig.Process("dispatch", &env); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}

	if env.DatabaseHost != "" {
		cfg.Database.Host = env.DatabaseHost
	}
	if env.DatabasePort != 0 {
		cfg.Database.Port = env.DatabasePort
	}
	if env.RedisURL != "" {
		cfg.Redis.URL = env.RedisURL
	}
	if env.CronSpec != "" {
		cfg.Scheduler.CronSpec = env.CronSpec
	}
	if env.BatchSize != 0 {
		cfg.Scheduler.BatchSize = env.BatchSize
	}

	return cfg, nil
}
