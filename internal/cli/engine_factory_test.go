package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/internal/config"
	"github.com/aretw0/ludics/internal/logging"
	"github.com/aretw0/ludics/pkg/adapters/file"
	"github.com/aretw0/ludics/pkg/adapters/memory"
	"github.com/aretw0/ludics/pkg/adapters/redis"
	"github.com/aretw0/ludics/pkg/adapters/sqlite"
	"github.com/aretw0/ludics/pkg/domain"
)

func TestOpenStore(t *testing.T) {
	t.Run("memory by default", func(t *testing.T) {
		s, l, err := OpenStore(config.Store{})
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, s)
		assert.Nil(t, l)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		s, _, err := OpenStore(config.Store{Driver: "file", Path: dir})
		require.NoError(t, err)
		require.IsType(t, &file.Store{}, s)
		assert.Equal(t, dir, s.(*file.Store).BasePath)
	})

	t.Run("sqlite creates its directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "ludics.db")
		s, _, err := OpenStore(config.Store{Driver: "sqlite", Path: path})
		require.NoError(t, err)
		require.IsType(t, &sqlite.Store{}, s)
		assert.NoError(t, s.(*sqlite.Store).Close())
		assert.FileExists(t, path)
	})

	t.Run("redis with locker", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, l, err := OpenStore(config.Store{Driver: "redis", RedisAddr: mr.Addr(), Prefix: "test:"})
		require.NoError(t, err)
		require.IsType(t, &redis.Store{}, s)
		require.NotNil(t, l)
		defer s.(*redis.Store).Close()

		unlock, err := l.Lock(context.Background(), "d1", time.Second)
		require.NoError(t, err)
		assert.True(t, mr.Exists("test:lock:d1"))
		require.NoError(t, unlock(context.Background()))
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := OpenStore(config.Store{Driver: "etcd"})
		assert.ErrorContains(t, err, "unknown store driver")
	})
}

func TestNewEngine(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Log.Level = "debug"
	logger, err := NewLogger(cfg.Log, &buf)
	require.NoError(t, err)

	engine, err := NewEngine(cfg, logger)
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	_, err = engine.CreateDesign(ctx, domain.NewDesign("d1", "budget", "alice", domain.PolarityP))
	require.NoError(t, err)
	_, err = engine.AppendAct(ctx, "d1", domain.Act{Kind: domain.KindProper, Polarity: domain.PolarityP, LocusPath: "0"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "design changed")
	assert.Contains(t, buf.String(), "event=act_appended")

	cfg.Engine.MaxPairs = -1
	_, err = NewEngine(cfg, logger)
	assert.ErrorContains(t, err, "error initializing engine")
}

func TestNewEngine_Security(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store = config.Store{Driver: "file", Path: dir}
	cfg.Security = config.Security{
		EncryptionKey: "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=",
		PIIPatterns:   []string{`\d{3}-\d{4}`},
	}
	engine, err := NewEngine(cfg, logging.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = engine.CreateDesign(ctx, domain.NewDesign("d1", "budget", "alice", domain.PolarityP))
	require.NoError(t, err)
	_, err = engine.AppendAct(ctx, "d1", domain.Act{Kind: domain.KindProper, Polarity: domain.PolarityP, LocusPath: "0", Expression: "call 555-1234"})
	require.NoError(t, err)

	d, err := engine.GetDesign(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "call ***", d.Acts[0].Expression)

	raw, err := file.New(dir).GetDesign(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw.Acts[0].Expression, "enc:v1:"))

	cfg.Security = config.Security{EncryptionKey: "c2hvcnQ="}
	_, err = NewEngine(cfg, logging.NewNop())
	assert.ErrorContains(t, err, "want 32 bytes")

	cfg.Security = config.Security{PIIPatterns: []string{"("}}
	_, err = NewEngine(cfg, logging.NewNop())
	assert.ErrorContains(t, err, "invalid pii pattern")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.Log{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = NewLogger(config.Log{Level: "loud"}, &buf)
	assert.Error(t, err)
}

func TestSignalContext_Cancel(t *testing.T) {
	sc := NewSignalContext(context.Background())
	sc.Cancel()
	<-sc.Done()
	assert.Nil(t, sc.Signal())
}
