package config

import (
	"gopkg.in/yaml.v3"
	"os"
	"time"

	"kaspimarket_api/config/values"
)

type Config interface {
}

type MarketplaceConfig interface {
}

type KaspiConfig struct {
	ApiKey      string                   `yaml:"api_key"`
	BaseURL     string                   `yaml:"base_url"`
	KaspiValues values.KaspiValues       `yaml:"default_values"`
	Banned      values.KaspiBannedBrands `yaml:"banned_brands"`
}

type MoySkladConfig struct {
	BaseURL  string `yaml:"base_url"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ConveyorConfig — параметры одного прогона конвейера.
type ConveyorConfig struct {
	BatchSize        int           `yaml:"batch_size"`
	WorkerCount      int           `yaml:"worker_count"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
	Schedule         string        `yaml:"schedule"`
	RequestsPerMin   int           `yaml:"requests_per_minute"`
	MaxPendingAge    time.Duration `yaml:"max_pending_age"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"`
	AlertAfterErrors int           `yaml:"alert_after_errors"`
}

type AppConfig struct {
	Kaspi    KaspiConfig    `yaml:"kaspi"`
	MoySklad MoySkladConfig `yaml:"moysklad"`
	Telegram TelegramConfig `yaml:"telegram"`
	Conveyor ConveyorConfig `yaml:"conveyor"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

func LoadConfig(filename string) (*AppConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	config := &AppConfig{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}
	return config, nil
}
