package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMongo  = "mongo"
	DriverRedis  = "redis"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	DefaultRoom string `envconfig:"DEFAULT_ROOM" default:"main" validate:"required"`

	StoreDriver    string        `envconfig:"STORE_DRIVER" default:"sqlite" validate:"oneof=memory sqlite badger mongo redis"`
	StorageTimeout time.Duration `envconfig:"STORAGE_TIMEOUT" default:"5s" validate:"gte=0"`
	SQLitePath     string        `envconfig:"SQLITE_PATH" default:"app.db" validate:"required_if=StoreDriver sqlite"`
	BadgerPath     string        `envconfig:"BADGER_PATH" default:"data/badger" validate:"required_if=StoreDriver badger"`
	MongoURI       string        `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase  string        `envconfig:"MONGODB_DATABASE" default:"msgboard" validate:"required_if=StoreDriver mongo"`
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required_if=StoreDriver redis"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`

	RateLimit         int           `envconfig:"RATE_LIMIT" default:"5" validate:"gte=1"`
	RateWindow        time.Duration `envconfig:"RATE_WINDOW" default:"60s" validate:"gt=0"`
	RateSweepInterval time.Duration `envconfig:"RATE_SWEEP_INTERVAL" default:"5m" validate:"gte=0"`
	PageSize          int           `envconfig:"PAGE_SIZE" default:"100" validate:"gte=1"`

	CSRFMode   string `envconfig:"CSRF_MODE" default:"process" validate:"oneof=process session"`
	CSRFSecret string `envconfig:"CSRF_SECRET"`
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
