package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config определяет структуру конфигурации всего приложения целиком
// значения из файла могут быть переопределены переменными окружения LEADBASE_*
type Config struct {
	HTTPServer `yaml:"http_server" envPrefix:"HTTP_"`
	Postgres   `yaml:"postgres" envPrefix:"POSTGRES_"`
	Kafka      `yaml:"kafka" envPrefix:"KAFKA_"`
	Logger     `yaml:"logger" envPrefix:"LOG_"`
	Auth       `yaml:"auth" envPrefix:"AUTH_"`
	Cache      `yaml:"cache" envPrefix:"CACHE_"`
	PayPal     `yaml:"paypal" envPrefix:"PAYPAL_"`
	Checkout   `yaml:"checkout" envPrefix:"CHECKOUT_"`
}

// HTTPServer содержит конфигурацию для HTTP-сервера
type HTTPServer struct {
	Port    string        `yaml:"port" env:"PORT"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Postgres содержит конфигурацию для подключения к базе данных
type Postgres struct {
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Host     string `yaml:"host" env:"HOST"`
	Port     string `yaml:"port" env:"PORT"`
	DBName   string `yaml:"db_name" env:"DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`
	Migrate  bool   `yaml:"migrate" env:"MIGRATE"`
}

// Kafka содержит конфигурацию для подключения к кафке
type Kafka struct {
	Brokers      []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	ImportTopic  string   `yaml:"import_topic" env:"IMPORT_TOPIC"`
	PaymentTopic string   `yaml:"payment_topic" env:"PAYMENT_TOPIC"`
	GroupID      string   `yaml:"group_id" env:"GROUP_ID"`
}

// Logger содержит конфигурацию для логгера
type Logger struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // text или json
	File   string `yaml:"file" env:"FILE"`     // дополнительный вывод в файл, если задан
}

// Auth содержит настройки проверки JWT
type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
}

// Cache содержит настройки кэша сводок панели управления
type Cache struct {
	DashboardTTL time.Duration `yaml:"dashboard_ttl" env:"DASHBOARD_TTL"`
}

// PayPal содержит настройки платёжного провайдера
type PayPal struct {
	BaseURL      string `yaml:"base_url" env:"BASE_URL"`
	ClientID     string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`
	ReturnURL    string `yaml:"return_url" env:"RETURN_URL"`
	CancelURL    string `yaml:"cancel_url" env:"CANCEL_URL"`
}

// Checkout содержит настройки оформления покупки
type Checkout struct {
	DownloadRetention time.Duration `yaml:"download_retention" env:"DOWNLOAD_RETENTION"`
}

// значения по умолчанию для необязательных параметров
const (
	DefaultDashboardTTL      = 5 * time.Minute
	DefaultDownloadRetention = 10 * 24 * time.Hour
)

// Load читает конфигурацию из файла и применяет переопределения из окружения
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// переменные окружения имеют приоритет над файлом
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "LEADBASE_"}); err != nil {
		return nil, fmt.Errorf("failed to parse env overrides: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// MustLoad загружает конфигурацию из файла по указанному пути
// в случае ошибки программа завершается с фатальной ошибкой
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Cache.DashboardTTL <= 0 {
		c.Cache.DashboardTTL = DefaultDashboardTTL
	}
	if c.Checkout.DownloadRetention <= 0 {
		c.Checkout.DownloadRetention = DefaultDownloadRetention
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
	if c.HTTPServer.Timeout <= 0 {
		c.HTTPServer.Timeout = 10 * time.Second
	}
}
