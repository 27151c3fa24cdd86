package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/pkg/domain"
)

func TestHooks(t *testing.T) {
	c := NewWithRegistry(prometheus.NewRegistry())
	h := c.Hooks()
	ctx := context.Background()

	h.OnActAppended(ctx, &domain.DesignEvent{Deliberation: "dlg"})
	h.OnActAppended(ctx, &domain.DesignEvent{Deliberation: "dlg"})
	h.OnSubtreeCloned(ctx, &domain.DesignEvent{})
	h.OnInteraction(ctx, &domain.InteractionEvent{Status: domain.StatusConvergent, Pairs: 3})
	h.OnDisp(ctx, &domain.ComputeEvent{Count: 2})
	h.OnPlays(ctx, &domain.ComputeEvent{Count: 9, Exhausted: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ActsAppended.WithLabelValues("dlg")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.LociCloned))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Interactions.WithLabelValues(string(domain.StatusConvergent))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Computations.WithLabelValues("disp", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Computations.WithLabelValues("plays", "true")))
}

func TestHandler(t *testing.T) {
	c := New()
	c.Hooks().OnInteraction(context.Background(), &domain.InteractionEvent{Status: domain.StatusDivergent, Pairs: 1})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ludics_interactions_total{status="DIVERGENT"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMergeHooks(t *testing.T) {
	c := NewWithRegistry(prometheus.NewRegistry())
	var seen int
	h := domain.MergeHooks(c.Hooks(), domain.LifecycleHooks{
		OnInteraction: func(context.Context, *domain.InteractionEvent) { seen++ },
	})
	h.OnInteraction(context.Background(), &domain.InteractionEvent{Status: domain.StatusConvergent})
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Interactions.WithLabelValues(string(domain.StatusConvergent))))
	assert.Nil(t, domain.MergeHooks().OnDisp)
}
