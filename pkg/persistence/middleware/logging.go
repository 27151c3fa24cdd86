package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/ports"
)

type loggingMiddleware struct {
	passthrough
	logger *slog.Logger
}

// NewLoggingMiddleware logs writes at Debug and failed writes at Error.
// Reads pass through untouched.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.Store) ports.Store {
		return &loggingMiddleware{passthrough: passthrough{next}, logger: logger}
	}
}

func (m *loggingMiddleware) log(op string, start time.Time, err error, args ...any) {
	args = append(args, "duration", time.Since(start))
	if err != nil && result(err) == "error" {
		m.logger.Error("store "+op+" failed", append(args, "err", err)...)
		return
	}
	m.logger.Debug("store "+op, append(args, "result", result(err))...)
}

func (m *loggingMiddleware) EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	start := time.Now()
	l, err := m.Store.EnsureLocus(ctx, dialogueID, path)
	m.log("ensure_locus", start, err, "dialogue_id", dialogueID, "path", path)
	return l, err
}

func (m *loggingMiddleware) CreateDesign(ctx context.Context, d *domain.Design) error {
	start := time.Now()
	err := m.Store.CreateDesign(ctx, d)
	m.log("create_design", start, err, "design_id", d.ID, "acts", len(d.Acts))
	return err
}

func (m *loggingMiddleware) SaveDesign(ctx context.Context, d *domain.Design) error {
	start := time.Now()
	err := m.Store.SaveDesign(ctx, d)
	m.log("save_design", start, err, "design_id", d.ID, "version", d.Version)
	return err
}

func (m *loggingMiddleware) DeleteDesign(ctx context.Context, id string) error {
	start := time.Now()
	err := m.Store.DeleteDesign(ctx, id)
	m.log("delete_design", start, err, "design_id", id)
	return err
}
