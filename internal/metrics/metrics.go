// Package metrics exposes engine lifecycle events as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/ludics/pkg/domain"
)

// Collector records acts, clones, interactions and computations.
type Collector struct {
	registry *prometheus.Registry

	ActsAppended   *prometheus.CounterVec
	LociCloned     prometheus.Counter
	Interactions   *prometheus.CounterVec
	PairsPerStep   prometheus.Histogram
	Computations   *prometheus.CounterVec
	ComputedValues *prometheus.HistogramVec
}

// New creates a collector on its own registry, with the Go and process
// collectors included.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the engine collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	c := &Collector{
		registry: reg,
		ActsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ludics_acts_appended_total",
				Help: "Acts appended to designs",
			},
			[]string{"deliberation"},
		),
		LociCloned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ludics_subtree_clones_total",
			Help: "Subtree clone operations",
		}),
		Interactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ludics_interactions_total",
				Help: "Finished interactions by status",
			},
			[]string{"status"},
		),
		PairsPerStep: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ludics_interaction_pairs",
			Help:    "Pairs produced per interaction",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		}),
		Computations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ludics_computations_total",
				Help: "Disp and Plays computations",
			},
			[]string{"kind", "exhausted"},
		),
		ComputedValues: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ludics_computation_results",
				Help:    "Paths or plays produced per computation",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(c.ActsAppended, c.LociCloned, c.Interactions, c.PairsPerStep, c.Computations, c.ComputedValues)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks feeding the collectors.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActAppended: func(_ context.Context, e *domain.DesignEvent) {
			c.ActsAppended.WithLabelValues(e.Deliberation).Inc()
		},
		OnSubtreeCloned: func(context.Context, *domain.DesignEvent) {
			c.LociCloned.Inc()
		},
		OnInteraction: func(_ context.Context, e *domain.InteractionEvent) {
			c.Interactions.WithLabelValues(string(e.Status)).Inc()
			c.PairsPerStep.Observe(float64(e.Pairs))
		},
		OnDisp: func(_ context.Context, e *domain.ComputeEvent) {
			c.compute("disp", e)
		},
		OnPlays: func(_ context.Context, e *domain.ComputeEvent) {
			c.compute("plays", e)
		},
	}
}

func (c *Collector) compute(kind string, e *domain.ComputeEvent) {
	exhausted := "false"
	if e.Exhausted {
		exhausted = "true"
	}
	c.Computations.WithLabelValues(kind, exhausted).Inc()
	c.ComputedValues.WithLabelValues(kind).Observe(float64(e.Count))
}
