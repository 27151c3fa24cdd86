package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/ludics/internal/config"
	"github.com/aretw0/ludics/internal/logging"
	"github.com/aretw0/ludics/pkg/domain"
)

// SignalContext is cancelled on SIGINT or SIGTERM and remembers which one arrived.
type SignalContext struct {
	context.Context
	Cancel context.CancelFunc

	mu  sync.Mutex
	sig os.Signal
}

// NewSignalContext derives a SignalContext from parent.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, Cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			sc.mu.Lock()
			sc.sig = sig
			sc.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sig
}

// NewLogger builds the logger described by cfg, writing to w.
// Text logs go to w as well so that reports on stdout stay clean when w is stderr.
func NewLogger(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return logging.NewJSON(w, level), nil
	}
	return logging.NewText(w, level), nil
}

// DebugHooks logs every lifecycle event at Debug.
func DebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	design := func(_ context.Context, e *domain.DesignEvent) {
		logger.Debug("design changed", "event", e.Type, "design_id", e.DesignID, "locus", e.Locus, "acts", e.Acts, "version", e.Version)
	}
	compute := func(_ context.Context, e *domain.ComputeEvent) {
		logger.Debug("computed", "event", e.Type, "design_id", e.DesignID, "count", e.Count, "exhausted", e.Exhausted)
	}
	return domain.LifecycleHooks{
		OnActAppended:   design,
		OnSubtreeCloned: design,
		OnInteraction: func(_ context.Context, e *domain.InteractionEvent) {
			logger.Debug("interaction", "design_id", e.DesignID, "counter_id", e.CounterID, "status", e.Status, "pairs", e.Pairs)
		},
		OnDisp:  compute,
		OnPlays: compute,
	}
}
