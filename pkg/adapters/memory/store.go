package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
	"github.com/aretw0/ludics/pkg/ports"
)

// Store implements ports.Store in memory.
// Safe for concurrent use.
type Store struct {
	designs map[string]*domain.Design
	loci    map[string]map[string]domain.Locus // dialogue -> path -> locus
	mu      sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		designs: make(map[string]*domain.Design),
		loci:    make(map[string]map[string]domain.Locus),
	}
}

// EnsureLocus creates the locus and its missing ancestors.
func (s *Store) EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	chain, err := ports.LocusChain(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tree, ok := s.loci[dialogueID]
	if !ok {
		tree = make(map[string]domain.Locus)
		s.loci[dialogueID] = tree
	}
	var l domain.Locus
	for _, p := range chain {
		existing, ok := tree[p]
		if !ok {
			existing = ports.NewLocus(dialogueID, p)
			tree[p] = existing
		}
		l = existing
	}
	return &l, nil
}

// GetLocus retrieves a locus by path.
func (s *Store) GetLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.loci[dialogueID][locus.Normalize(path)]
	if !ok {
		return nil, domain.ErrNoSuchLocus
	}
	return &l, nil
}

// ListLoci returns the dialogue's loci in canonical order.
func (s *Store) ListLoci(ctx context.Context, dialogueID string) ([]domain.Locus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Locus, 0, len(s.loci[dialogueID]))
	for _, l := range s.loci[dialogueID] {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b domain.Locus) int { return locus.Compare(a.Path, b.Path) })
	return out, nil
}

// CreateDesign stores a new design.
func (s *Store) CreateDesign(ctx context.Context, d *domain.Design) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.designs[d.ID]; ok {
		return domain.ErrDesignExists
	}
	// Deep copy to ensure isolation, similar to serialization
	s.designs[d.ID] = d.Clone()
	return nil
}

// GetDesign retrieves a design from memory.
func (s *Store) GetDesign(ctx context.Context, id string) (*domain.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.designs[id]
	if !ok {
		return nil, domain.ErrNoSuchDesign
	}

	// Copy on read so callers can't mutate the stored design through the pointer
	ret := d.Clone()
	ret.SortActs()
	return ret, nil
}

// SaveDesign replaces an existing design.
func (s *Store) SaveDesign(ctx context.Context, d *domain.Design) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.designs[d.ID]; !ok {
		return domain.ErrNoSuchDesign
	}
	s.designs[d.ID] = d.Clone()
	return nil
}

// DeleteDesign removes a design.
func (s *Store) DeleteDesign(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.designs[id]; !ok {
		return domain.ErrNoSuchDesign
	}
	delete(s.designs, id)
	return nil
}

// ListDesigns returns the design IDs of a dialogue.
func (s *Store) ListDesigns(ctx context.Context, dialogueID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.designs))
	for id, d := range s.designs {
		if dialogueID == "" || d.DeliberationID == dialogueID {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, strings.Compare)
	return ids, nil
}
