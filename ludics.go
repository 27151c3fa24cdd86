package ludics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/ludics/internal/behaviour"
	"github.com/aretw0/ludics/internal/correspondence"
	"github.com/aretw0/ludics/internal/dispute"
	"github.com/aretw0/ludics/internal/interaction"
	"github.com/aretw0/ludics/internal/moves"
	"github.com/aretw0/ludics/internal/strategy"
	"github.com/aretw0/ludics/pkg/adapters/memory"
	"github.com/aretw0/ludics/pkg/dialogue"
	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/persistence/middleware"
	"github.com/aretw0/ludics/pkg/ports"
)

// Result types of the engine operations.
type (
	PlaysResult       = strategy.PlaysResult
	CheckReport       = correspondence.Report
	CheckResult       = correspondence.CheckResult
	DesignRoundTrip   = correspondence.DesignRoundTrip
	StrategyRoundTrip = correspondence.StrategyRoundTrip
	Move              = moves.Move
	MoveKind          = moves.Kind
	Dialogue          = moves.Dialogue
	MoveStep          = moves.Step
	BehaviourClosure  = behaviour.Closure
	DesignIncarnation = behaviour.DesignIncarnation
)

// Engine is the high-level entry point for the ludics library.
// It owns the store, the single-writer design manager and the computation budgets.
type Engine struct {
	store       ports.Store
	middlewares []middleware.Middleware
	manager     *dialogue.Manager
	compiler    *moves.Compiler
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	interaction interaction.Options
	plays       strategy.Options
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the persistence backend (default: in-memory).
func WithStore(s ports.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithStoreMiddleware wraps the store; the first middleware is the outermost.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.middlewares = append(e.middlewares, mws...)
	}
}

// WithLocker adds a distributed single-writer lock held for ttl per mutation.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = domain.MergeHooks(e.hooks, hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxPairs bounds the pairs of one interaction.
func WithMaxPairs(n int) Option {
	return func(e *Engine) {
		e.interaction.MaxPairs = n
	}
}

// WithPlaysBudget bounds the innocent closure of Plays(V).
func WithPlaysBudget(maxIterations, maxPlays int) Option {
	return func(e *Engine) {
		e.plays.MaxIterations = maxIterations
		e.plays.MaxPlays = maxPlays
	}
}

// WithCompatibility replaces the orthogonality test applied to paired acts.
func WithCompatibility(fn interaction.CompatibilityFunc) Option {
	return func(e *Engine) {
		e.interaction.Compatible = fn
	}
}

// New initializes a new Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.interaction.MaxPairs < 0 || eng.plays.MaxIterations < 0 || eng.plays.MaxPlays < 0 {
		return nil, fmt.Errorf("budgets must not be negative")
	}
	eng.store = middleware.Chain(eng.store, eng.middlewares...)

	managerOpts := []dialogue.Option{
		dialogue.WithLogger(eng.logger),
		dialogue.WithHooks(eng.hooks),
	}
	if eng.locker != nil {
		managerOpts = append(managerOpts, dialogue.WithLocker(eng.locker))
		if eng.lockTTL > 0 {
			managerOpts = append(managerOpts, dialogue.WithLockTTL(eng.lockTTL))
		}
	}
	eng.manager = dialogue.NewManager(eng.store, managerOpts...)
	eng.compiler = moves.NewCompiler(eng.manager,
		moves.WithInteraction(eng.interaction),
		moves.WithLogger(eng.logger),
	)
	return eng, nil
}

// Store returns the (wrapped) store the engine writes to.
func (e *Engine) Store() ports.Store {
	return e.store
}

// Close releases the underlying store when it holds resources.
func (e *Engine) Close() error {
	if c, ok := e.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *Engine) correspondenceOptions() correspondence.Options {
	return correspondence.Options{Interaction: e.interaction, Plays: e.plays}
}

// Design store operations.

// EnsureLocus creates the locus at path, and its ancestors, if missing.
func (e *Engine) EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	return e.manager.EnsureLocus(ctx, dialogueID, path)
}

// ListLoci returns the loci of a dialogue in canonical order.
func (e *Engine) ListLoci(ctx context.Context, dialogueID string) ([]domain.Locus, error) {
	return e.store.ListLoci(ctx, dialogueID)
}

// CreateDesign validates and stores a new design.
func (e *Engine) CreateDesign(ctx context.Context, d *domain.Design) (*domain.Design, error) {
	return e.manager.CreateDesign(ctx, d)
}

// GetDesign loads a design with its acts in chronicle order.
func (e *Engine) GetDesign(ctx context.Context, id string) (*domain.Design, error) {
	return e.manager.Get(ctx, id)
}

// ListDesigns lists design ids of a dialogue; an empty id lists all.
func (e *Engine) ListDesigns(ctx context.Context, dialogueID string) ([]string, error) {
	return e.manager.List(ctx, dialogueID)
}

// DeleteDesign removes a design.
func (e *Engine) DeleteDesign(ctx context.Context, id string) error {
	return e.manager.Delete(ctx, id)
}

// AppendAct validates act against the design's chronicle and appends it.
func (e *Engine) AppendAct(ctx context.Context, designID string, act domain.Act) (*domain.Design, error) {
	return e.manager.AppendAct(ctx, designID, act)
}

// CloneSubtree copies the acts under from to to within one design.
func (e *Engine) CloneSubtree(ctx context.Context, designID, from, to string) (*domain.CloneResult, error) {
	return e.manager.CloneSubtree(ctx, designID, from, to)
}

// Computations.

// StepInteraction runs the interaction between two designs of opposite polarity.
func (e *Engine) StepInteraction(ctx context.Context, a, b *domain.Design) (*domain.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := interaction.Step(a, b, e.interaction)
	if err != nil {
		return nil, err
	}

	switch {
	case res.BudgetExceeded:
		e.logger.Info("interaction budget exhausted", "positive", res.PositiveID, "negative", res.NegativeID, "pairs", len(res.Pairs))
	case res.Status == domain.StatusDivergent:
		e.logger.Info("interaction diverged", "positive", res.PositiveID, "negative", res.NegativeID, "locus", res.Divergence.Locus)
	default:
		e.logger.Debug("interaction finished", "positive", res.PositiveID, "negative", res.NegativeID, "status", res.Status)
	}
	if e.hooks.OnInteraction != nil {
		e.hooks.OnInteraction(ctx, &domain.InteractionEvent{
			EventBase: domain.NewEventBase(domain.EventInteractionDone, res.PositiveID),
			CounterID: res.NegativeID,
			Status:    res.Status,
			Pairs:     len(res.Pairs),
		})
	}
	return res, nil
}

// StepByID loads two stored designs and runs their interaction.
func (e *Engine) StepByID(ctx context.Context, aID, bID string) (*domain.Interaction, error) {
	a, err := e.manager.Get(ctx, aID)
	if err != nil {
		return nil, err
	}
	b, err := e.manager.Get(ctx, bID)
	if err != nil {
		return nil, err
	}
	return e.StepInteraction(ctx, a, b)
}

// ComputeDisp computes Disp(d) against counters, in order.
func (e *Engine) ComputeDisp(ctx context.Context, d *domain.Design, counters []*domain.Design) (*domain.DisputeSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set, err := dispute.Compute(d, counters, e.interaction)
	if err != nil {
		return nil, err
	}
	e.disputed(ctx, set)
	return set, nil
}

func (e *Engine) disputed(ctx context.Context, set *domain.DisputeSet) {
	e.logger.Debug("disp computed", "design_id", set.DesignID, "disputes", set.Count, "divergent", len(set.Divergent))
	if e.hooks.OnDisp != nil {
		e.hooks.OnDisp(ctx, &domain.ComputeEvent{
			EventBase: domain.NewEventBase(domain.EventDispComputed, set.DesignID),
			Count:     set.Count,
		})
	}
}

// DispByID computes Disp of a stored design. Without counter ids every stored
// counter-design of the same dialogue is used.
func (e *Engine) DispByID(ctx context.Context, designID string, counterIDs ...string) (*domain.DisputeSet, error) {
	d, counters, err := e.loadWithCounters(ctx, designID, counterIDs)
	if err != nil {
		return nil, err
	}
	return e.ComputeDisp(ctx, d, counters)
}

// ComputePlays builds the smallest innocent strategy containing views.
func (e *Engine) ComputePlays(ctx context.Context, views []domain.View) (*PlaysResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := strategy.ComputePlays(views, e.plays)
	if err != nil {
		return nil, err
	}
	e.played(ctx, "", res.PlayCount, res.Iterations, !res.IsSmallest)
	return res, nil
}

func (e *Engine) played(ctx context.Context, designID string, count, iterations int, exhausted bool) {
	if exhausted {
		e.logger.Info("plays budget exhausted", "design_id", designID, "plays", count, "iterations", iterations)
	}
	if e.hooks.OnPlays != nil {
		e.hooks.OnPlays(ctx, &domain.ComputeEvent{
			EventBase:  domain.NewEventBase(domain.EventPlaysComputed, designID),
			Count:      count,
			Iterations: iterations,
			Exhausted:  exhausted,
		})
	}
}

// DesignToStrategy derives the strategy of d from its disputes against counters.
func (e *Engine) DesignToStrategy(ctx context.Context, d *domain.Design, counters []*domain.Design) (*domain.Strategy, *domain.DisputeSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s, set, err := correspondence.DesignToStrategy(d, counters, e.correspondenceOptions())
	if err != nil {
		return nil, nil, err
	}
	e.disputed(ctx, set)
	e.played(ctx, d.ID, s.PlayCount, s.Iterations, !s.IsSmallest)
	return s, set, nil
}

// StrategyByID derives the strategy of a stored design.
func (e *Engine) StrategyByID(ctx context.Context, designID string, counterIDs ...string) (*domain.Strategy, *domain.DisputeSet, error) {
	d, counters, err := e.loadWithCounters(ctx, designID, counterIDs)
	if err != nil {
		return nil, nil, err
	}
	return e.DesignToStrategy(ctx, d, counters)
}

// StrategyToDesign collects the player's acts of s into a design. origin, when
// given, provides the identity of the result.
func (e *Engine) StrategyToDesign(ctx context.Context, s *domain.Strategy, origin *domain.Design) (*domain.Design, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return correspondence.StrategyToDesign(s, origin)
}

// CheckAllIsomorphisms runs the four correspondence checks. A nil strategy is
// derived from d first.
func (e *Engine) CheckAllIsomorphisms(ctx context.Context, d *domain.Design, s *domain.Strategy, counters []*domain.Design) (CheckReport, error) {
	if err := ctx.Err(); err != nil {
		return CheckReport{}, err
	}
	if s == nil {
		var err error
		if s, _, err = e.DesignToStrategy(ctx, d, counters); err != nil {
			return CheckReport{}, err
		}
	}
	r := correspondence.CheckAll(d, s, counters, e.correspondenceOptions())
	if !r.AllHold {
		e.logger.Info("correspondence check failed", "design_id", d.ID, "strategy_id", s.ID)
	}
	return r, nil
}

// CheckByID runs the checks for a stored design and its derived strategy.
func (e *Engine) CheckByID(ctx context.Context, designID string, counterIDs ...string) (CheckReport, error) {
	d, counters, err := e.loadWithCounters(ctx, designID, counterIDs)
	if err != nil {
		return CheckReport{}, err
	}
	return e.CheckAllIsomorphisms(ctx, d, nil, counters)
}

// RoundTripDesign converts d to its strategy and back.
func (e *Engine) RoundTripDesign(ctx context.Context, d *domain.Design, counters []*domain.Design) (*DesignRoundTrip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return correspondence.RoundTripDesign(d, counters, e.correspondenceOptions())
}

// RoundTripStrategy converts s to a design and back.
func (e *Engine) RoundTripStrategy(ctx context.Context, s *domain.Strategy, counters []*domain.Design) (*StrategyRoundTrip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return correspondence.RoundTripStrategy(s, counters, e.correspondenceOptions())
}

// RoundTripByID runs the design round trip for a stored design.
func (e *Engine) RoundTripByID(ctx context.Context, designID string, counterIDs ...string) (*DesignRoundTrip, error) {
	d, counters, err := e.loadWithCounters(ctx, designID, counterIDs)
	if err != nil {
		return nil, err
	}
	return e.RoundTripDesign(ctx, d, counters)
}

// Behaviours.

func (e *Engine) behaviourOptions() behaviour.Options {
	return behaviour.Options{Interaction: e.interaction, MaxIterations: e.plays.MaxIterations}
}

// Biorthogonal closes set under ⊥⊥ within universe.
func (e *Engine) Biorthogonal(ctx context.Context, set, universe []*domain.Design) (*BehaviourClosure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := behaviour.Biorthogonal(set, universe, e.behaviourOptions())
	if err != nil {
		return nil, err
	}
	if !c.Complete {
		e.logger.Info("behaviour closure budget exhausted", "input", c.Input, "iterations", c.Iterations)
	}
	return c, nil
}

// BehaviourByID closes stored designs under ⊥⊥, taking every design of the
// dialogue as the universe.
func (e *Engine) BehaviourByID(ctx context.Context, dialogueID string, designIDs ...string) (*BehaviourClosure, error) {
	ids, err := e.manager.List(ctx, dialogueID)
	if err != nil {
		return nil, err
	}
	byID := map[string]*domain.Design{}
	universe := make([]*domain.Design, 0, len(ids))
	for _, id := range ids {
		d, err := e.manager.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		byID[id] = d
		universe = append(universe, d)
	}
	set := make([]*domain.Design, 0, len(designIDs))
	for _, id := range designIDs {
		d, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not in dialogue %q", domain.ErrNoSuchDesign, id, dialogueID)
		}
		set = append(set, d)
	}
	return e.Biorthogonal(ctx, set, universe)
}

// IncarnateDesign keeps the part of d its orthogonal counters visit.
func (e *Engine) IncarnateDesign(ctx context.Context, d *domain.Design, counters []*domain.Design) (*DesignIncarnation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return behaviour.IncarnateDesign(d, counters, e.behaviourOptions())
}

// IncarnationByID incarnates a stored design against its counters.
func (e *Engine) IncarnationByID(ctx context.Context, designID string, counterIDs ...string) (*DesignIncarnation, error) {
	d, counters, err := e.loadWithCounters(ctx, designID, counterIDs)
	if err != nil {
		return nil, err
	}
	return e.IncarnateDesign(ctx, d, counters)
}

// Dialogue moves.

// OpenDialogue loads, or creates, the pair of designs of a dialogue.
func (e *Engine) OpenDialogue(ctx context.Context, dialogueID string) (*Dialogue, error) {
	return e.compiler.Open(ctx, dialogueID)
}

// ApplyMove compiles one move into acts on the dialogue's stored designs.
func (e *Engine) ApplyMove(ctx context.Context, dl *Dialogue, m Move) (*MoveStep, error) {
	step, err := e.compiler.Apply(ctx, dl, m)
	if err != nil {
		return nil, err
	}
	if step.Interaction != nil && e.hooks.OnInteraction != nil {
		in := step.Interaction
		e.hooks.OnInteraction(ctx, &domain.InteractionEvent{
			EventBase: domain.NewEventBase(domain.EventInteractionDone, in.PositiveID),
			CounterID: in.NegativeID,
			Status:    in.Status,
			Pairs:     len(in.Pairs),
		})
	}
	return step, nil
}

// loadWithCounters loads a design and either the named counters or every stored
// counter-design of its dialogue.
func (e *Engine) loadWithCounters(ctx context.Context, designID string, counterIDs []string) (*domain.Design, []*domain.Design, error) {
	d, err := e.manager.Get(ctx, designID)
	if err != nil {
		return nil, nil, err
	}

	explicit := len(counterIDs) > 0
	if !explicit {
		if counterIDs, err = e.manager.List(ctx, d.DeliberationID); err != nil {
			return nil, nil, err
		}
	}
	var counters []*domain.Design
	for _, id := range counterIDs {
		if id == d.ID && !explicit {
			continue
		}
		c, err := e.manager.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if explicit || dispute.IsCounter(d, c) {
			counters = append(counters, c)
		}
	}
	return d, counters, nil
}
