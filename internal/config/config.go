// cinelingua-service/internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"cinelingua-service/internal/recommend"
)

const (
	// EnvPrefix - префикс переменных окружения, например CINELINGUA_HTTP__PORT.
	EnvPrefix = "CINELINGUA_"
	// ConfigPathEnvVar указывает на необязательный YAML файл конфигурации.
	ConfigPathEnvVar = "CINELINGUA_CONFIG"
)

// Config - полная конфигурация сервиса.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	GRPC      GRPCConfig      `koanf:"grpc"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Recommend RecommendConfig `koanf:"recommend"`
	Curated   CuratedConfig   `koanf:"curated"`
	Breaker   BreakerConfig   `koanf:"breaker"`
}

type HTTPConfig struct {
	Port            string        `koanf:"port" validate:"required,numeric"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type GRPCConfig struct {
	Port    string `koanf:"port" validate:"required,numeric"`
	Enabled bool   `koanf:"enabled"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// DatabaseConfig выбирает хранилище каталога. Драйвер "memory" работает на
// каталоге в памяти, который можно заполнить из JSON выгрузки таблицы movies.
type DatabaseConfig struct {
	Driver       string `koanf:"driver" validate:"oneof=postgres memory"`
	URL          string `koanf:"url" validate:"required_if=Driver postgres"`
	Table        string `koanf:"table" validate:"required"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `koanf:"max_idle_conns" validate:"gte=0"`
	ImageBase    string `koanf:"image_base" validate:"omitempty,url"`
	SeedFile     string `koanf:"seed_file" validate:"excluded_unless=Driver memory"`
}

type CacheConfig struct {
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`
}

type RecommendConfig struct {
	Pool    recommend.PoolConfig `koanf:"pool"`
	Weights recommend.Weights    `koanf:"weights"`
}

type CuratedConfig struct {
	PoolSize  int     `koanf:"pool_size" validate:"gt=0"`
	MinRating float64 `koanf:"min_rating" validate:"gte=0,lte=10"`
	Target    int     `koanf:"target" validate:"gt=0"`
	// Buckets, если заданы, заменяют встроенную таблицу квот по жанрам.
	Buckets []recommend.Bucket `koanf:"buckets" validate:"omitempty,dive"`
}

type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

func defaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:            "8081",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		GRPC: GRPCConfig{Port: "9092", Enabled: true},
		Log:  LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver:       "postgres",
			Table:        "movies",
			MaxOpenConns: 10,
			MaxIdleConns: 1,
			ImageBase:    "https://image.tmdb.org/t/p/w342",
		},
		Cache: CacheConfig{TTL: 24 * time.Hour},
		Recommend: RecommendConfig{
			Pool:    recommend.DefaultPool,
			Weights: recommend.DefaultWeights,
		},
		Curated: CuratedConfig{PoolSize: 1200, MinRating: 6.2, Target: 24},
		Breaker: BreakerConfig{
			Enabled:      true,
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
	}
}

// Load собирает конфигурацию из значений по умолчанию, необязательного YAML
// файла и окружения, по возрастанию приоритета.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// CINELINGUA_DATABASE__MAX_OPEN_CONNS -> database.max_open_conns
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.applyLegacyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	if s == ConfigPathEnvVar {
		return ""
	}
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// applyLegacyEnv учитывает имена переменных из прежнего деплоя.
func (c *Config) applyLegacyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Database.URL == "" {
		c.Database.URL = v
	}
	if v := os.Getenv("MOVIES_TABLE"); v != "" {
		c.Database.Table = v
	}
}

var validate = validator.New()

// Validate проверяет ограничения полей.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// SlogLevel отображает настроенный уровень в slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
