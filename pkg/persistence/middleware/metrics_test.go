package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/pkg/adapters/memory"
	"github.com/aretw0/ludics/pkg/persistence/middleware"
	"github.com/aretw0/ludics/pkg/ports"
)

func TestMetricsMiddleware(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := middleware.NewStoreMetrics(reg)
	store := middleware.NewMetricsMiddleware(m)(memory.NewStore())

	require.NoError(t, store.CreateDesign(ctx, claim()))
	require.Error(t, store.CreateDesign(ctx, claim()))
	_, err := store.GetDesign(ctx, "missing")
	require.Error(t, err)
	_, err = store.EnsureLocus(ctx, "dlg", "0.1")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("create_design", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("create_design", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("get_design", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("ensure_locus", "ok")))

	n, err := testutil.GatherAndCount(reg, "ludics_store_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMetricsMiddleware_Contract(t *testing.T) {
	ports.RunStoreContract(t, middleware.NewMetricsMiddleware(middleware.NewStoreMetrics(nil))(memory.NewStore()))
}

func TestLoggingMiddleware(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := middleware.NewLoggingMiddleware(logger)(memory.NewStore())

	require.NoError(t, store.CreateDesign(ctx, claim()))
	assert.Contains(t, buf.String(), "store create_design")
	assert.Contains(t, buf.String(), "design_id=d1")
	assert.Contains(t, buf.String(), "result=ok")

	buf.Reset()
	require.NoError(t, store.DeleteDesign(ctx, "d1"))
	assert.Contains(t, buf.String(), "store delete_design")
}

func TestLoggingMiddleware_Contract(t *testing.T) {
	ports.RunStoreContract(t, middleware.NewLoggingMiddleware(slog.New(slog.DiscardHandler))(memory.NewStore()))
}
