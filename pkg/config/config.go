package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const envFile = "config.env"

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
	)
}

type AppConfig struct {
	HTTPAddr       string
	LogDir         string
	AllowedOrigins []string

	RedisAddr        string
	RedisPassword    string
	ActivityCacheTTL time.Duration
	IdempotencyTTL   time.Duration

	KafkaBrokers           []string
	KafkaNotificationTopic string

	NotifyWorkers   int
	NotifyQueueSize int
	NotifyTimeout   time.Duration

	OriginEntity string
	PromoBalance decimal.Decimal
	Currency     string
}

type Config struct {
	DB  DBConfig
	App AppConfig
}

// Load reads config.env when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	db, err := LoadConfigDB()
	if err != nil {
		return nil, err
	}
	app, err := LoadConfigApp()
	if err != nil {
		return nil, err
	}
	return &Config{DB: *db, App: *app}, nil
}

func LoadConfigDB() (*DBConfig, error) {
	port, err := intEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	maxOpen, err := intEnv("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}

	maxIdle, err := intEnv("DB_MAX_IDLE_CONNS", 25)
	if err != nil {
		return nil, err
	}

	return &DBConfig{
		Host:         stringEnv("DB_HOST", "localhost"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
	}, nil
}

func LoadConfigApp() (*AppConfig, error) {
	cacheTTL, err := durationEnv("ACTIVITY_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	idempotencyTTL, err := durationEnv("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	workers, err := intEnv("NOTIFY_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	queueSize, err := intEnv("NOTIFY_QUEUE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	notifyTimeout, err := durationEnv("NOTIFY_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, err
	}

	promo, err := decimal.NewFromString(stringEnv("LEDGER_PROMO_BALANCE", "20.00"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_PROMO_BALANCE: %w", err)
	}
	if promo.IsNegative() {
		return nil, fmt.Errorf("invalid LEDGER_PROMO_BALANCE: must not be negative")
	}

	return &AppConfig{
		HTTPAddr:               stringEnv("HTTP_ADDR", ":8080"),
		LogDir:                 stringEnv("LOG_DIR", "logs"),
		AllowedOrigins:         listEnv("CORS_ALLOWED_ORIGINS"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		ActivityCacheTTL:       cacheTTL,
		IdempotencyTTL:         idempotencyTTL,
		KafkaBrokers:           listEnv("KAFKA_BROKERS"),
		KafkaNotificationTopic: stringEnv("KAFKA_NOTIFICATION_TOPIC", "notifications"),
		NotifyWorkers:          workers,
		NotifyQueueSize:        queueSize,
		NotifyTimeout:          notifyTimeout,
		OriginEntity:           stringEnv("LEDGER_ORIGIN_ENTITY", "Smart Wallet Ltd"),
		PromoBalance:           promo,
		Currency:               stringEnv("LEDGER_CURRENCY", "EUR"),
	}, nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
