// Package config описывает конфигурацию сервисов RedCajeros и загружает её
// из YAML-файла, путь к которому передаётся в переменной окружения CONFIG_PATH.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env             string `yaml:"env" env-default:"local"`
	Storage         `yaml:"storage"`
	RedisConnection `yaml:"redis_connection"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`
	RabbitMQ        `yaml:"rabbitmq"`
	SMTP            `yaml:"smtp"`
	Ledger          `yaml:"ledger"`
	Billing         `yaml:"billing"`
	Admin           `yaml:"admin"`
	RateLimit       `yaml:"rate_limit"`
	Scheduler       `yaml:"scheduler"`
}

// Storage настройки хранилища.
type Storage struct {
	Driver                  string `yaml:"driver" env-default:"postgres"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает redis, кэш настроек тогда живёт в памяти процесса.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	SettingsTTL  time.Duration `yaml:"settings_ttl" env-default:"5m"`
}

// JWTToken структура для работы с jwt-токеном.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ настройки брокера. Пустой URL отключает публикацию событий.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// SMTP настройки почтового сервера для notification-sender.
type SMTP struct {
	SMTPHost string `yaml:"host"`
	SMTPPort string `yaml:"port" env-default:"587"`
	SMTPUser string `yaml:"user"`
	SMTPPass string `yaml:"pass" env:"SMTP_PASS"`
	From     string `yaml:"from"`
}

// Ledger значения настроек журнала по умолчанию.
// Флаги сформулированы так, чтобы нулевое значение совпадало с поведением по умолчанию.
type Ledger struct {
	CommissionPercent float64  `yaml:"commission_percent" env-default:"10"`
	Currency          string   `yaml:"currency" env-default:"$"`
	Platforms         []string `yaml:"platforms" env-default:"Zeus,Gana,Ganamos"`
	ForbidDebts       bool     `yaml:"forbid_debts"`
	MaxChargeAmount   float64  `yaml:"max_charge_amount" env-default:"1000000"`
}

// Billing значения настроек подписки по умолчанию.
type Billing struct {
	PriceBasic           float64 `yaml:"price_basic" env-default:"9.99"`
	PricePremium         float64 `yaml:"price_premium" env-default:"19.99"`
	TrialDays            int     `yaml:"trial_days" env-default:"7"`
	RenewalDays          int     `yaml:"renewal_days" env-default:"30"`
	AllowMultiplePending bool    `yaml:"allow_multiple_pending"`
	CodeAttempts         int     `yaml:"code_attempts" env-default:"5"`
}

// Admin учётная запись администратора и реквизиты для оплаты.
type Admin struct {
	AdminEmail    string `yaml:"email" env-default:"admin@redcajeros.com"`
	AdminPassword string `yaml:"password" env:"ADMIN_PASSWORD"`
	AdminName     string `yaml:"name" env-default:"Administrador"`
	AdminWhatsApp string `yaml:"whatsapp"`
	BankAccount   string `yaml:"bank_account"`
	BankName      string `yaml:"bank_name"`
	AccountHolder string `yaml:"account_holder"`
}

// RateLimit ограничение частоты запросов на один аккаунт.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"10"`
	Burst int     `yaml:"burst" env-default:"20"`
}

// Scheduler настройки планировщика уведомлений.
type Scheduler struct {
	Interval     time.Duration `yaml:"interval" env-default:"12h"`
	NotifyBefore time.Duration `yaml:"notify_before" env-default:"24h"`
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг из файла.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.StorageConnectionString == "" {
			return fmt.Errorf("storage_connection_string is required for driver %q", c.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	if c.JWTSecretKey == "" {
		return fmt.Errorf("jwt_secret_key is required")
	}
	if len(c.Platforms) == 0 {
		return fmt.Errorf("at least one platform is required")
	}
	if c.RenewalDays <= 0 || c.TrialDays < 0 {
		return fmt.Errorf("renewal_days must be positive and trial_days non-negative")
	}
	if c.CodeAttempts <= 0 {
		return fmt.Errorf("code_attempts must be positive")
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage: driver=%s migrations=%s\n"+
			"Redis: addr=%s db=%d\n"+
			"HTTPServer: addr=%s timeout=%s idle=%s\n"+
			"JWTToken: ttl=%s\n"+
			"RabbitMQ: enabled=%t\n"+
			"Ledger: platforms=%v commission=%.2f allow_debts=%t\n"+
			"Billing: basic=%.2f premium=%.2f trial=%dd renewal=%dd\n",
		c.Env,
		c.Driver, c.MigrationsPath,
		c.AddressRedis, c.DB,
		c.AddressHTTP, c.TimeoutHTTP, c.IdleTimeout,
		c.TokenTTL,
		c.RabbitMQURL != "",
		c.Platforms, c.CommissionPercent, !c.ForbidDebts,
		c.PriceBasic, c.PricePremium, c.TrialDays, c.RenewalDays,
	)
}
