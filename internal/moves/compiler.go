package moves

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/ludics/internal/interaction"
	"github.com/aretw0/ludics/internal/logging"
	"github.com/aretw0/ludics/pkg/dialogue"
	"github.com/aretw0/ludics/pkg/domain"
)

// Compiler plays moves on stored designs through a dialogue manager.
type Compiler struct {
	manager *dialogue.Manager
	opts    interaction.Options
	logger  *slog.Logger
}

// Option configures the Compiler.
type Option func(*Compiler)

// WithInteraction sets the budget of the interaction a CLOSE checks.
func WithInteraction(opts interaction.Options) Option {
	return func(c *Compiler) {
		c.opts = opts
	}
}

// WithLogger configures a logger for the Compiler.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCompiler creates a Compiler over manager.
func NewCompiler(manager *dialogue.Manager, opts ...Option) *Compiler {
	c := &Compiler{manager: manager, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open loads the two designs of a dialogue, creating the missing ones.
func (c *Compiler) Open(ctx context.Context, dialogueID string) (*Dialogue, error) {
	dl := NewDialogue(dialogueID)
	for _, d := range []*domain.Design{dl.Positive, dl.Negative} {
		stored, err := c.manager.Get(ctx, d.ID)
		if errors.Is(err, domain.ErrNoSuchDesign) {
			stored, err = c.manager.CreateDesign(ctx, d)
			if errors.Is(err, domain.ErrDesignExists) {
				stored, err = c.manager.Get(ctx, d.ID)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("open dialogue %s: %w", dialogueID, err)
		}
		dl.set(stored)
	}
	return dl, nil
}

// Apply plays one move: the acts are planned against the stored designs and
// appended through the manager, mover first.
func (c *Compiler) Apply(ctx context.Context, dl *Dialogue, m Move) (*Step, error) {
	for _, id := range []string{dl.Positive.ID, dl.Negative.ID} {
		d, err := c.manager.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		dl.set(d)
	}

	acts, res, err := plan(dl, m, c.opts)
	if err != nil {
		c.logger.Debug("move rejected", "dialogue_id", dl.ID, "kind", m.Kind, "err", err)
		return nil, err
	}
	step := Step{Move: m, Interaction: res}
	for _, p := range acts {
		next, err := c.manager.AppendAct(ctx, dl.design(p.polarity).ID, p.act)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", m.Kind, err)
		}
		dl.set(next)
		last, _ := next.Last()
		step.Acts = append(step.Acts, last)
	}
	dl.record(step)
	c.logger.Debug("move applied", "dialogue_id", dl.ID, "kind", m.Kind, "acts", len(step.Acts))
	return &step, nil
}

// ApplyAll plays moves in order and stops at the first rejected one.
func (c *Compiler) ApplyAll(ctx context.Context, dl *Dialogue, moves []Move) error {
	for i, m := range moves {
		if _, err := c.Apply(ctx, dl, m); err != nil {
			return fmt.Errorf("move %d (%s): %w", i, m.Kind, err)
		}
	}
	return nil
}
