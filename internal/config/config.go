// Package config loads ludics settings. Environment variables override the
// config file, which overrides the defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/ludics/internal/interaction"
	"github.com/aretw0/ludics/internal/strategy"
	"github.com/aretw0/ludics/pkg/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LUDICS_"

// Config is the full runtime configuration.
type Config struct {
	Log      Log      `mapstructure:"log" envPrefix:"LOG_"`
	Engine   Engine   `mapstructure:"engine" envPrefix:"ENGINE_"`
	Store    Store    `mapstructure:"store" envPrefix:"STORE_"`
	Security Security `mapstructure:"security" envPrefix:"SECURITY_"`
	HTTP     HTTP     `mapstructure:"http" envPrefix:"HTTP_"`
	Lock     Lock     `mapstructure:"lock" envPrefix:"LOCK_"`
}

type Log struct {
	Level  string `mapstructure:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" env:"FORMAT" validate:"oneof=text json"`
}

// Engine holds the computation budgets.
type Engine struct {
	MaxPairs      int    `mapstructure:"max_pairs" env:"MAX_PAIRS" validate:"gte=0"`
	MaxIterations int    `mapstructure:"max_iterations" env:"MAX_ITERATIONS" validate:"gte=0"`
	MaxPlays      int    `mapstructure:"max_plays" env:"MAX_PLAYS" validate:"gte=0"`
	Semantics     string `mapstructure:"semantics" env:"SEMANTICS" validate:"required"`
}

type Store struct {
	Driver        string        `mapstructure:"driver" env:"DRIVER" validate:"oneof=memory file redis sqlite"`
	Path          string        `mapstructure:"path" env:"PATH"`
	RedisAddr     string        `mapstructure:"redis_addr" env:"REDIS_ADDR" validate:"required_if=Driver redis"`
	RedisPassword string        `mapstructure:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"redis_db" env:"REDIS_DB" validate:"gte=0"`
	Prefix        string        `mapstructure:"prefix" env:"PREFIX"`
	TTL           time.Duration `mapstructure:"ttl" env:"TTL" validate:"gte=0"`
}

// Security configures the store middleware applied to act expressions.
type Security struct {
	// EncryptionKey is a base64 AES-256 key; empty disables encryption.
	EncryptionKey string   `mapstructure:"encryption_key" env:"ENCRYPTION_KEY" validate:"omitempty,base64"`
	FallbackKeys  []string `mapstructure:"fallback_keys" env:"FALLBACK_KEYS" validate:"dive,base64"`
	PIIPatterns   []string `mapstructure:"pii_patterns" env:"PII_PATTERNS"`
}

type HTTP struct {
	Addr string `mapstructure:"addr" env:"ADDR" validate:"required"`
	// MetricsAddr serves /metrics on its own listener when set.
	MetricsAddr string `mapstructure:"metrics_addr" env:"METRICS_ADDR"`
}

type Lock struct {
	TTL time.Duration `mapstructure:"ttl" env:"TTL" validate:"gt=0"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log:    Log{Level: "info", Format: "text"},
		Engine: Engine{
			MaxPairs:      interaction.DefaultMaxPairs,
			MaxIterations: strategy.DefaultMaxIterations,
			MaxPlays:      strategy.DefaultMaxPlays,
			Semantics:     domain.DefaultSemantics,
		},
		Store:  Store{Driver: "memory", Prefix: "ludics:"},
		HTTP:   HTTP{Addr: ":8080"},
		Lock:   Lock{TTL: 30 * time.Second},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path (yaml, toml or json by extension), applies LUDICS_* overrides
// and validates the result. An empty or missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".json":
		err = json.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return raw, nil
}

func decode(raw map[string]any, cfg *Config) error {
	if raw == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
