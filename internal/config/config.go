package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/damoang/angple-messenger/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config 애플리케이션 설정 (YAML + 환경변수 오버라이드)
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	CORS      CORSConfig      `yaml:"cors"`
	Storage   StorageConfig   `yaml:"storage"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Inspector InspectorConfig `yaml:"inspector"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port int    `yaml:"port" env:"PORT"`
	Env  string `yaml:"env" env:"APP_ENV"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host" env:"DB_HOST"`
	Port            int    `yaml:"port" env:"DB_PORT"`
	User            string `yaml:"user" env:"DB_USER"`
	Password        string `yaml:"password" env:"DB_PASSWORD"`
	DBName          string `yaml:"dbname" env:"DB_NAME"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"` // seconds
}

// GetDSN returns the MySQL DSN
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     int    `yaml:"port" env:"REDIS_PORT"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	PoolSize int    `yaml:"pool_size" env:"REDIS_POOL_SIZE"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret" env:"JWT_SECRET"`
	ExpiresIn int    `yaml:"expires_in" env:"JWT_EXPIRES_IN"` // seconds
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins" env:"CORS_ALLOW_ORIGINS"`
}

type StorageConfig struct {
	Enabled         bool   `yaml:"enabled" env:"S3_ENABLED"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Region          string `yaml:"region" env:"S3_REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET"`
	CDNURL          string `yaml:"cdn_url" env:"S3_CDN_URL"`
	ForcePathStyle  bool   `yaml:"force_path_style" env:"S3_FORCE_PATH_STYLE"`
}

// BroadcastConfig 예약 발송 디스패처 설정
type BroadcastConfig struct {
	Cron        string `yaml:"cron" env:"BROADCAST_CRON"`               // gronx 표현식
	BatchSize   int    `yaml:"batch_size" env:"BROADCAST_BATCH_SIZE"`   // tick 당 최대 job 수
	Parallelism int    `yaml:"parallelism" env:"BROADCAST_PARALLELISM"` // 대상별 동시 발송 수
}

type InspectorConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl" env:"INSPECTOR_SESSION_TTL"`
}

type RateLimitConfig struct {
	MessagesPerMinute int `yaml:"messages_per_minute" env:"RATE_LIMIT_MESSAGES_PER_MINUTE"`
}

// IsDevelopment reports whether the server runs in a local/dev environment
func (c *Config) IsDevelopment() bool {
	switch c.Server.Env {
	case "", "local", "dev", "development":
		return true
	}
	return false
}

// Default returns the built-in defaults applied before the YAML file
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8083, Env: "local"},
		Database:  DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root", DBName: "angple_messenger", MaxIdleConns: 10, MaxOpenConns: 50, ConnMaxLifetime: 300},
		Redis:     RedisConfig{Host: "127.0.0.1", Port: 6379, PoolSize: 20},
		JWT:       JWTConfig{ExpiresIn: 3600},
		CORS:      CORSConfig{AllowOrigins: "http://localhost:3000"},
		Storage:   StorageConfig{Region: "auto"},
		Broadcast: BroadcastConfig{Cron: "* * * * *", BatchSize: 20, Parallelism: 8},
		Inspector: InspectorConfig{SessionTTL: 30 * time.Minute},
		RateLimit: RateLimitConfig{MessagesPerMinute: 60},
	}
}

// Load reads the YAML file (missing file is allowed) and applies env overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logger.Warn("config file %s not found, using defaults + env", path)
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env override: %w", err)
	}

	if cfg.JWT.Secret == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("jwt.secret is required outside development")
	}
	if cfg.Broadcast.Parallelism < 1 {
		cfg.Broadcast.Parallelism = 1
	}
	return cfg, nil
}

// LogResolved prints the effective (non-secret) configuration
func LogResolved(cfg *Config) {
	logger.GetLogger().Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("db_host", cfg.Database.Host).
		Str("db_name", cfg.Database.DBName).
		Str("redis_host", cfg.Redis.Host).
		Bool("storage_enabled", cfg.Storage.Enabled).
		Str("broadcast_cron", cfg.Broadcast.Cron).
		Msg("config resolved")
}
