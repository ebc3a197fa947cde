package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	Env         string `mapstructure:"env"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	SQL   bool   `mapstructure:"sql"`
}

// DatabaseConfig 数据库配置
// Driver 可选 mysql / postgres / sqlite，sqlite 只使用 Path
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	GroupID string           `mapstructure:"group_id"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	WalletEvents string `mapstructure:"wallet_events"`
}

type BusinessConfig struct {
	DepositMinAmount     int64 `mapstructure:"deposit_min_amount"`
	WithdrawalMinAmount  int64 `mapstructure:"withdrawal_min_amount"`
	MaxRetryCount        int   `mapstructure:"max_retry_count"`
	LockTTLSeconds       int   `mapstructure:"lock_ttl_seconds"`
	LockRetryIntervalMs  int   `mapstructure:"lock_retry_interval_ms"`
	LockMaxRetries       int   `mapstructure:"lock_max_retries"`
	OTPTTLSeconds        int   `mapstructure:"otp_ttl_seconds"`
	OTPLength            int   `mapstructure:"otp_length"`
	BcryptCost           int   `mapstructure:"bcrypt_cost"`
	ReconcileIntervalSec int   `mapstructure:"reconcile_interval_seconds"`
}

// Default 返回内置默认值，配置文件中缺失的键以此为准
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, MetricsPort: 9090, Env: "local"},
		Log:    LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver:       "mysql",
			Host:         "127.0.0.1",
			Port:         3306,
			User:         "root",
			Database:     "coinledger",
			MaxOpenConns: 50,
			MaxIdleConns: 10,
		},
		Redis: RedisConfig{Host: "127.0.0.1", Port: 6379, PoolSize: 20},
		Kafka: KafkaConfig{
			Brokers: []string{"127.0.0.1:9092"},
			GroupID: "coinledger-notifier",
			Topic:   KafkaTopicConfig{WalletEvents: "wallet_events"},
		},
		Business: BusinessConfig{
			DepositMinAmount:     50,
			WithdrawalMinAmount:  100,
			MaxRetryCount:        5,
			LockTTLSeconds:       30,
			LockRetryIntervalMs:  50,
			LockMaxRetries:       100,
			OTPTTLSeconds:        600,
			OTPLength:            6,
			BcryptCost:           10,
			ReconcileIntervalSec: 300,
		},
	}
}

// LoadConfig 加载配置文件，环境变量 COINLEDGER_<SECTION>_<KEY> 优先
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("coinledger")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Business.DepositMinAmount <= 0 || c.Business.WithdrawalMinAmount <= 0 {
		return fmt.Errorf("minimum amounts must be positive")
	}
	if c.Kafka.Topic.WalletEvents == "" {
		return fmt.Errorf("kafka.topic.wallet_events is required")
	}
	return nil
}

func (b BusinessConfig) LockTTL() time.Duration {
	return time.Duration(b.LockTTLSeconds) * time.Second
}

func (b BusinessConfig) LockRetryInterval() time.Duration {
	return time.Duration(b.LockRetryIntervalMs) * time.Millisecond
}

func (b BusinessConfig) OTPTTL() time.Duration {
	return time.Duration(b.OTPTTLSeconds) * time.Second
}

func (b BusinessConfig) ReconcileInterval() time.Duration {
	return time.Duration(b.ReconcileIntervalSec) * time.Second
}
