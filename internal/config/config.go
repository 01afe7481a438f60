package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	CookieDomain   string   `mapstructure:"cookie_domain"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr formats the host:port pair expected by go-redis and asynq.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig contains JWT key material locations and session policy.
type AuthConfig struct {
	PrivateKeyPath        string        `mapstructure:"private_key_path"`
	PublicKeyPath         string        `mapstructure:"public_key_path"`
	AccessTokenTTL        time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL       time.Duration `mapstructure:"refresh_token_ttl"`
	LoginRateLimitPerHour int           `mapstructure:"login_rate_limit_per_hour"`
	LoginLockThreshold    int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL          time.Duration `mapstructure:"login_lock_ttl"`
}

// PipelineConfig tunes transition-engine and derived-view behavior.
type PipelineConfig struct {
	// ReadyThreshold is the minimum technical and communication score the
	// latest completed mock interview must reach before a candidate is
	// listed as ready for deployment.
	ReadyThreshold int `mapstructure:"ready_threshold"`
}

// ClamdConfig points at the virus-scanning daemon used for uploads.
// An empty addr disables scanning.
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// WorkerConfig contains asynq worker settings.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "pipetrack")
	v.SetDefault("database.user", "pipetrack")
	v.SetDefault("database.password", "pipetrack")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "attachments")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.private_key_path", "keys/jwt_private.pem")
	v.SetDefault("auth.public_key_path", "keys/jwt_public.pem")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.login_rate_limit_per_hour", 10)
	v.SetDefault("auth.login_lock_threshold", 5)
	v.SetDefault("auth.login_lock_ttl", 15*time.Minute)
	v.SetDefault("pipeline.ready_threshold", 6)
	v.SetDefault("worker.concurrency", 10)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                       "API_PORT",
		"api.cookie_domain":              "API_COOKIE_DOMAIN",
		"api.allowed_origins":            "API_ALLOWED_ORIGINS",
		"database.host":                  "DATABASE_HOST",
		"database.port":                  "DATABASE_PORT",
		"database.name":                  "POSTGRES_DB",
		"database.user":                  "POSTGRES_USER",
		"database.password":              "POSTGRES_PASSWORD",
		"database.sslmode":               "DATABASE_SSLMODE",
		"redis.host":                     "REDIS_HOST",
		"redis.port":                     "REDIS_PORT",
		"minio.endpoint":                 "MINIO_ENDPOINT",
		"minio.public_endpoint":          "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":            "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":        "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                  "MINIO_USE_SSL",
		"minio.region":                   "MINIO_REGION",
		"minio.bucket":                   "MINIO_BUCKET",
		"minio.bucket_lookup":            "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":       "MINIO_AUTO_CREATE_BUCKET",
		"auth.private_key_path":          "AUTH_PRIVATE_KEY_PATH",
		"auth.public_key_path":           "AUTH_PUBLIC_KEY_PATH",
		"auth.access_token_ttl":          "AUTH_ACCESS_TOKEN_TTL",
		"auth.refresh_token_ttl":         "AUTH_REFRESH_TOKEN_TTL",
		"auth.login_rate_limit_per_hour": "AUTH_LOGIN_RATE_LIMIT_PER_HOUR",
		"auth.login_lock_threshold":      "AUTH_LOGIN_LOCK_THRESHOLD",
		"auth.login_lock_ttl":            "AUTH_LOGIN_LOCK_TTL",
		"pipeline.ready_threshold":       "PIPELINE_READY_THRESHOLD",
		"clamd.addr":                     "CLAMD_ADDR",
		"worker.concurrency":             "WORKER_CONCURRENCY",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.PrivateKeyPath == "" {
		return errors.New("auth private key path is required")
	}
	if cfg.Auth.PublicKeyPath == "" {
		return errors.New("auth public key path is required")
	}
	if cfg.Pipeline.ReadyThreshold < 0 || cfg.Pipeline.ReadyThreshold > 10 {
		return errors.New("pipeline ready threshold must be within 0..10")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	return nil
}
