// Package cli holds the wiring shared by the ludics commands: store and
// engine construction from config, loggers and signal handling.
package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/aretw0/ludics"
	"github.com/aretw0/ludics/internal/config"
	"github.com/aretw0/ludics/pkg/adapters/file"
	"github.com/aretw0/ludics/pkg/adapters/memory"
	"github.com/aretw0/ludics/pkg/adapters/redis"
	"github.com/aretw0/ludics/pkg/adapters/sqlite"
	"github.com/aretw0/ludics/pkg/persistence/middleware"
	"github.com/aretw0/ludics/pkg/ports"
)

// DefaultSQLitePath is used when the sqlite driver has no path.
var DefaultSQLitePath = filepath.Join(".ludics", "ludics.db")

// OpenStore builds the store named by cfg.Driver. The redis driver also
// returns a locker sharing the store's client.
func OpenStore(cfg config.Store) (ports.Store, ports.DistributedLocker, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.NewStore(), nil, nil
	case "file":
		return file.New(cfg.Path), nil, nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = DefaultSQLitePath
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "redis":
		var opts []redis.Option
		if cfg.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Prefix))
		}
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		s := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...)
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = redis.DefaultPrefix
		}
		return s, redis.NewLocker(s.Client(), prefix), nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// securityMiddleware builds the PII masking and encryption layers, PII first
// so that masking sees clear text.
func securityMiddleware(cfg config.Security) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIPatterns) > 0 {
		for _, p := range cfg.PIIPatterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
			}
		}
		mws = append(mws, middleware.NewPIIMiddleware(cfg.PIIPatterns))
	}
	if cfg.EncryptionKey == "" {
		return mws, nil
	}
	active, err := decodeKey(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range cfg.FallbackKeys {
		fk, err := decodeKey(k)
		if err != nil {
			return nil, err
		}
		enc.FallbackKeys = append(enc.FallbackKeys, fk)
	}
	return append(mws, middleware.NewEncryptionMiddleware(enc)), nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// NewEngine creates an engine from cfg. Extra options are applied last.
func NewEngine(cfg *config.Config, logger *slog.Logger, extra ...ludics.Option) (*ludics.Engine, error) {
	store, locker, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("error opening store: %w", err)
	}

	opts := []ludics.Option{
		ludics.WithStore(store),
		ludics.WithLogger(logger),
		ludics.WithMaxPairs(cfg.Engine.MaxPairs),
		ludics.WithPlaysBudget(cfg.Engine.MaxIterations, cfg.Engine.MaxPlays),
	}
	if locker != nil {
		opts = append(opts, ludics.WithLocker(locker, cfg.Lock.TTL))
	}
	mws, err := securityMiddleware(cfg.Security)
	if err != nil {
		return nil, err
	}
	if len(mws) > 0 {
		opts = append(opts, ludics.WithStoreMiddleware(mws...))
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		opts = append(opts, ludics.WithLifecycleHooks(DebugHooks(logger)))
	}

	engine, err := ludics.New(append(opts, extra...)...)
	if err != nil {
		if c, ok := store.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}
