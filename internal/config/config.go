package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Minio     MinioConfig     `mapstructure:"minio"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Invite    InviteConfig    `mapstructure:"invite"`
}

type AppConfig struct {
	Environment string `mapstructure:"environment" envconfig:"APP_ENVIRONMENT"`
	BaseURL     string `mapstructure:"base_url" envconfig:"APP_BASE_URL"`
	LogLevel    string `mapstructure:"log_level" envconfig:"APP_LOG_LEVEL"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" envconfig:"SERVER_PORT"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" envconfig:"SERVER_REQUEST_TIMEOUT"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" envconfig:"SERVER_MAX_UPLOAD_BYTES"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" envconfig:"DATABASE_HOST"`
	Port         int    `mapstructure:"port" envconfig:"DATABASE_PORT"`
	User         string `mapstructure:"user" envconfig:"DATABASE_USER"`
	Password     string `mapstructure:"password" envconfig:"DATABASE_PASSWORD"`
	Name         string `mapstructure:"name" envconfig:"DATABASE_NAME"`
	SSLMode      string `mapstructure:"sslmode" envconfig:"DATABASE_SSLMODE"`
	MaxOpenConns int    `mapstructure:"max_open_conns" envconfig:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" envconfig:"DATABASE_MAX_IDLE_CONNS"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" envconfig:"JWT_SECRET"`
	Issuer string `mapstructure:"issuer" envconfig:"JWT_ISSUER"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"REDIS_MAX_RETRIES"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"REDIS_RETRY_BACKOFF"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"REDIS_MIN_IDLE_CONNS"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint" envconfig:"MINIO_ENDPOINT"`
	AccessKey string `mapstructure:"access_key" envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `mapstructure:"secret_key" envconfig:"MINIO_SECRET_KEY"`
	Bucket    string `mapstructure:"bucket" envconfig:"MINIO_BUCKET"`
	UseSSL    bool   `mapstructure:"use_ssl" envconfig:"MINIO_USE_SSL"`
	PublicURL string `mapstructure:"public_url" envconfig:"MINIO_PUBLIC_URL"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled" envconfig:"SMTP_ENABLED"`
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	User     string `mapstructure:"user" envconfig:"SMTP_USER"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"rps" envconfig:"RATE_LIMIT_RPS"`
	Burst             int     `mapstructure:"burst" envconfig:"RATE_LIMIT_BURST"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`
}

type InviteConfig struct {
	TTL time.Duration `mapstructure:"ttl" envconfig:"INVITE_TTL"`
}

// Default returns a configuration usable for local development.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Environment: "development",
			BaseURL:     "http://localhost:3000",
			LogLevel:    "info",
		},
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			RequestTimeout: 30 * time.Second,
			MaxUploadBytes: 20 << 20,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "postgres",
			Password:     "postgres",
			Name:         "dentallab",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		JWT: JWTConfig{
			Issuer: "dentallab",
		},
		Redis: RedisConfig{
			URL:          "redis://localhost:6379/0",
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     10,
		},
		Minio: MinioConfig{
			Endpoint: "localhost:9000",
			Bucket:   "job-attachments",
		},
		SMTP: SMTPConfig{
			Port: 587,
			From: "no-reply@dentallab.local",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Invite: InviteConfig{
			TTL: 7 * 24 * time.Hour,
		},
	}
}

// LoadConfig reads config.yml (optional) on top of the defaults and then
// applies LAB_* environment overrides.
func LoadConfig() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	sections := []interface{}{
		&cfg.App, &cfg.Server, &cfg.Database, &cfg.JWT, &cfg.Redis,
		&cfg.Minio, &cfg.SMTP, &cfg.RateLimit, &cfg.CORS, &cfg.Invite,
	}
	for _, section := range sections {
		if err := envconfig.Process("lab", section); err != nil {
			return fmt.Errorf("failed to apply environment overrides: %w", err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret is required")
	}
	if c.Invite.TTL <= 0 {
		problems = append(problems, "invite.ttl must be positive")
	}
	if c.Server.Port <= 0 {
		problems = append(problems, "server.port must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
