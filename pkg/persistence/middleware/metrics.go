package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/ports"
)

// StoreMetrics are the collectors of the metrics middleware.
type StoreMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewStoreMetrics creates the collectors and registers them with reg.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ludics_store_operations_total",
				Help: "Store operations by operation and result",
			},
			[]string{"op", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ludics_store_operation_duration_seconds",
				Help:    "Duration of store operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"op"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Duration)
	}
	return m
}

type metricsMiddleware struct {
	next    ports.Store
	metrics *StoreMetrics
}

// NewMetricsMiddleware counts and times every store call.
func NewMetricsMiddleware(metrics *StoreMetrics) Middleware {
	return func(next ports.Store) ports.Store {
		return &metricsMiddleware{next: next, metrics: metrics}
	}
}

// result labels a call outcome; misses are not failures.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNoSuchDesign), errors.Is(err, domain.ErrNoSuchLocus):
		return "not_found"
	case errors.Is(err, domain.ErrDesignExists):
		return "conflict"
	}
	return "error"
}

func (m *metricsMiddleware) observe(op string, start time.Time, err error) {
	m.metrics.Operations.WithLabelValues(op, result(err)).Inc()
	m.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsMiddleware) EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	start := time.Now()
	l, err := m.next.EnsureLocus(ctx, dialogueID, path)
	m.observe("ensure_locus", start, err)
	return l, err
}

func (m *metricsMiddleware) GetLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	start := time.Now()
	l, err := m.next.GetLocus(ctx, dialogueID, path)
	m.observe("get_locus", start, err)
	return l, err
}

func (m *metricsMiddleware) ListLoci(ctx context.Context, dialogueID string) ([]domain.Locus, error) {
	start := time.Now()
	loci, err := m.next.ListLoci(ctx, dialogueID)
	m.observe("list_loci", start, err)
	return loci, err
}

func (m *metricsMiddleware) CreateDesign(ctx context.Context, d *domain.Design) error {
	start := time.Now()
	err := m.next.CreateDesign(ctx, d)
	m.observe("create_design", start, err)
	return err
}

func (m *metricsMiddleware) GetDesign(ctx context.Context, id string) (*domain.Design, error) {
	start := time.Now()
	d, err := m.next.GetDesign(ctx, id)
	m.observe("get_design", start, err)
	return d, err
}

func (m *metricsMiddleware) SaveDesign(ctx context.Context, d *domain.Design) error {
	start := time.Now()
	err := m.next.SaveDesign(ctx, d)
	m.observe("save_design", start, err)
	return err
}

func (m *metricsMiddleware) DeleteDesign(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.DeleteDesign(ctx, id)
	m.observe("delete_design", start, err)
	return err
}

func (m *metricsMiddleware) ListDesigns(ctx context.Context, dialogueID string) ([]string, error) {
	start := time.Now()
	ids, err := m.next.ListDesigns(ctx, dialogueID)
	m.observe("list_designs", start, err)
	return ids, err
}
