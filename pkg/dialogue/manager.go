package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ludics/internal/chronicle"
	"github.com/aretw0/ludics/internal/logging"
	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
	"github.com/aretw0/ludics/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes writes per design. Unused locks are reference counted away.
type Manager struct {
	store ports.Store

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active locks by design ID

	locker  ports.DistributedLocker // optional
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHooks registers lifecycle callbacks fired after successful mutations.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// NewManager creates a design Manager over store.
func NewManager(store ports.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() ports.Store {
	return m.store
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock entry.mu, and call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock executes fn while holding the lock for a design.
func (m *Manager) WithLock(ctx context.Context, designID string, fn func(context.Context) error) error {
	entry := m.acquire(designID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(designID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, designID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// A fresh context: the caller's may already be done.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"design_id", designID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// EnsureLocus creates the locus at path within a dialogue, with its ancestors.
func (m *Manager) EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	l, err := m.store.EnsureLocus(ctx, dialogueID, path)
	if err != nil {
		m.logFailure("ensure locus", err, "dialogue_id", dialogueID, "path", path)
		return nil, err
	}
	return l, nil
}

// CreateDesign validates and stores a new design, ensuring its root locus.
func (m *Manager) CreateDesign(ctx context.Context, d *domain.Design) (*domain.Design, error) {
	if d == nil || d.ID == "" {
		return nil, fmt.Errorf("design ID cannot be empty")
	}
	if err := chronicle.Validate(d); err != nil {
		return nil, err
	}

	var out *domain.Design
	err := m.WithLock(ctx, d.ID, func(ctx context.Context) error {
		next := d.Clone()
		if next.Semantics == "" {
			next.Semantics = domain.DefaultSemantics
		}
		root, err := m.store.EnsureLocus(ctx, next.DeliberationID, next.Root())
		if err != nil {
			return err
		}
		next.RootLocusID = root.ID
		if err := m.ensureActLoci(ctx, next, next.Acts); err != nil {
			return err
		}
		now := time.Now().UTC()
		next.CreatedAt, next.UpdatedAt = now, now
		if err := m.store.CreateDesign(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		m.logFailure("create design", err, "design_id", d.ID)
		return nil, err
	}
	m.logger.Debug("design created", "design_id", out.ID, "polarity", out.Polarity, "acts", len(out.Acts))
	return out, nil
}

// AppendAct appends act to the design's chronicle and persists it.
// A rejected act leaves the stored design unchanged.
func (m *Manager) AppendAct(ctx context.Context, designID string, act domain.Act) (*domain.Design, error) {
	var out *domain.Design
	err := m.WithLock(ctx, designID, func(ctx context.Context) error {
		d, err := m.store.GetDesign(ctx, designID)
		if err != nil {
			return err
		}
		next, err := chronicle.AppendAct(d, act)
		if err != nil {
			return err
		}
		last, _ := next.Last()
		if err := m.ensureActLoci(ctx, next, []domain.Act{last}); err != nil {
			return err
		}
		next.UpdatedAt = time.Now().UTC()
		if err := m.store.SaveDesign(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		m.logFailure("append act", err, "design_id", designID, "locus", act.LocusPath)
		return nil, err
	}

	last, _ := out.Last()
	m.logger.Debug("act appended", "design_id", designID, "locus", last.LocusPath, "kind", last.Kind, "version", out.Version)
	if m.hooks.OnActAppended != nil {
		m.hooks.OnActAppended(ctx, &domain.DesignEvent{
			EventBase:    domain.NewEventBase(domain.EventActAppended, designID),
			Deliberation: out.DeliberationID,
			Locus:        last.LocusPath,
			Acts:         len(out.Acts),
			Version:      out.Version,
		})
	}
	return out, nil
}

// CloneSubtree copies the acts under from to to within one design.
func (m *Manager) CloneSubtree(ctx context.Context, designID, from, to string) (*domain.CloneResult, error) {
	var res domain.CloneResult
	var out *domain.Design
	err := m.WithLock(ctx, designID, func(ctx context.Context) error {
		d, err := m.store.GetDesign(ctx, designID)
		if err != nil {
			return err
		}
		next, r, err := chronicle.CloneSubtree(d, from, to)
		if err != nil {
			return err
		}
		res = r
		created, err := m.countNewLoci(ctx, next, res.Destinations)
		if err != nil {
			return err
		}
		res.CreatedLoci = created
		next.UpdatedAt = time.Now().UTC()
		if err := m.store.SaveDesign(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		m.logFailure("clone subtree", err, "design_id", designID, "from", from, "to", to)
		return nil, err
	}

	m.logger.Debug("subtree cloned", "design_id", designID, "from", from, "to", to, "acts", res.ClonedActs, "loci", res.CreatedLoci)
	if m.hooks.OnSubtreeCloned != nil {
		m.hooks.OnSubtreeCloned(ctx, &domain.DesignEvent{
			EventBase:    domain.NewEventBase(domain.EventSubtreeCloned, designID),
			Deliberation: out.DeliberationID,
			Locus:        locus.Normalize(to),
			Acts:         len(out.Acts),
			Version:      out.Version,
		})
	}
	return &res, nil
}

// countNewLoci ensures the destinations and the loci their acts open, counting
// the ones that did not exist before.
func (m *Manager) countNewLoci(ctx context.Context, d *domain.Design, destinations []string) (int, error) {
	var paths []string
	for _, a := range d.Acts {
		for _, dest := range destinations {
			if locus.IsPrefix(dest, a.LocusPath) {
				paths = append(paths, a.LocusPath)
				paths = append(paths, locus.ChildPaths(a.LocusPath, a.Ramification)...)
				break
			}
		}
	}
	paths = append(paths, destinations...)

	created := 0
	seen := map[string]bool{}
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		_, err := m.store.GetLocus(ctx, d.DeliberationID, p)
		switch {
		case errors.Is(err, domain.ErrNoSuchLocus):
			created++
		case err != nil:
			return 0, err
		}
		if _, err := m.store.EnsureLocus(ctx, d.DeliberationID, p); err != nil {
			return 0, err
		}
	}
	return created, nil
}

// ensureActLoci makes the locus of each act, and the loci it opens, exist.
func (m *Manager) ensureActLoci(ctx context.Context, d *domain.Design, acts []domain.Act) error {
	for _, a := range acts {
		for _, p := range append([]string{a.LocusPath}, locus.ChildPaths(a.LocusPath, a.Ramification)...) {
			if _, err := m.store.EnsureLocus(ctx, d.DeliberationID, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get loads a design.
func (m *Manager) Get(ctx context.Context, designID string) (*domain.Design, error) {
	return m.store.GetDesign(ctx, designID)
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context, dialogueID string) ([]string, error) {
	return m.store.ListDesigns(ctx, dialogueID)
}

// Delete removes a design.
func (m *Manager) Delete(ctx context.Context, designID string) error {
	return m.WithLock(ctx, designID, func(ctx context.Context) error {
		return m.store.DeleteDesign(ctx, designID)
	})
}

func (m *Manager) logFailure(op string, err error, args ...any) {
	args = append(args, "err", err)
	switch {
	case errors.Is(err, domain.ErrMalformedChronicle),
		errors.Is(err, domain.ErrNoSuchDesign),
		errors.Is(err, domain.ErrNoSuchLocus),
		errors.Is(err, domain.ErrDesignExists),
		errors.Is(err, domain.ErrEnsureLocusFailed):
		m.logger.Debug(op+" rejected", args...)
	default:
		m.logger.Error(op+" failed", args...)
	}
}
