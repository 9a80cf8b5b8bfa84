package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config — настройки сервиса, читаются из переменных окружения.
type Config struct {
	HTTPAddr    string `env:"SHOP_HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"SHOP_METRICS_ADDR" envDefault:":9090"`

	// DatabaseURL пустой — сервис работает на in-memory хранилище.
	DatabaseURL string `env:"DATABASE_URL"`

	// KafkaBrokers пустой — события остаются в outbox, worker не стартует.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	Log    Log    `envPrefix:"SHOP_"`
	Toss   Toss   `envPrefix:"TOSS_"`
	Outbox Outbox `envPrefix:"SHOP_OUTBOX_"`
}

// Log — настройки логирования.
type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Toss — реквизиты платёжного шлюза.
type Toss struct {
	BaseURL   string `env:"BASE_URL" envDefault:"https://api.tosspayments.com"`
	SecretKey string `env:"SECRET_KEY"`
}

// Outbox — настройки воркера публикации событий.
type Outbox struct {
	PollIntervalMs int `env:"POLL_INTERVAL_MS" envDefault:"1000"`
	BatchSize      int `env:"BATCH_SIZE" envDefault:"100"`
	MaxAttempts    int `env:"MAX_ATTEMPTS" envDefault:"3"`
}

// Load читает конфигурацию из окружения.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
