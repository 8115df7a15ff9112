package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken  string `mapstructure:"TELEGRAM_TOKEN"`
	DBDSN          string `mapstructure:"DB_DSN"`
	Environment    string `mapstructure:"ENV"`
	AdminChatID    int64  `mapstructure:"ADMIN_CHAT_ID"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	GatewayURL     string        `mapstructure:"PAYMENT_GATEWAY_URL"`
	GatewayKey     string        `mapstructure:"PAYMENT_GATEWAY_KEY"`
	GatewayTimeout time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	Currency       string        `mapstructure:"CURRENCY"`

	// CalendarBatchLimit сколько запросов остатка мест выполняется параллельно
	CalendarBatchLimit int `mapstructure:"CALENDAR_BATCH_LIMIT"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv()
}

// FromEnv читает конфигурацию из переменных окружения
func FromEnv() (*Config, error) {
	cfg := &Config{
		DBDSN:          os.Getenv("DB_DSN"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		Environment:    os.Getenv("ENV"),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		GatewayURL:     os.Getenv("PAYMENT_GATEWAY_URL"),
		GatewayKey:     os.Getenv("PAYMENT_GATEWAY_KEY"),
		Currency:       os.Getenv("CURRENCY"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "migrations"
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}

	var err error
	if cfg.AdminChatID, err = intEnv("ADMIN_CHAT_ID", 0); err != nil {
		return nil, err
	}

	limit, err := intEnv("CALENDAR_BATCH_LIMIT", 0)
	if err != nil {
		return nil, err
	}
	cfg.CalendarBatchLimit = int(limit)

	cfg.GatewayTimeout = 15 * time.Second
	if v := os.Getenv("GATEWAY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("GATEWAY_TIMEOUT: invalid duration %q", v)
		}
		cfg.GatewayTimeout = d
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required but not set")
	}
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("PAYMENT_GATEWAY_URL is required but not set")
	}

	return cfg, nil
}

func intEnv(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}
