// Package file stores designs and locus trees as JSON files on the local filesystem.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
	"github.com/aretw0/ludics/pkg/ports"
)

// Store implements ports.Store using the local filesystem.
//
// Layout under BasePath:
//
//	designs/<design-id>.json   one design with its acts
//	loci/<dialogue-id>.json    the locus tree of a dialogue, keyed by path
//
// IDs are path-escaped so that any ID maps to a single file. Writes within one
// process are serialized; every write is atomic.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".ludics/store".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".ludics", "store")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) designPath(id string) string {
	return filepath.Join(s.BasePath, "designs", url.PathEscape(id)+".json")
}

func (s *Store) lociPath(dialogueID string) string {
	return filepath.Join(s.BasePath, "loci", url.PathEscape(dialogueID)+".json")
}

// EnsureLocus creates the locus and its missing ancestors.
func (s *Store) EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	chain, err := ports.LocusChain(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.readTree(dialogueID)
	if err != nil {
		return nil, err
	}
	changed := false
	var l domain.Locus
	for _, p := range chain {
		existing, ok := tree[p]
		if !ok {
			existing = ports.NewLocus(dialogueID, p)
			tree[p] = existing
			changed = true
		}
		l = existing
	}
	if changed {
		if err := writeJSON(s.lociPath(dialogueID), tree); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEnsureLocusFailed, err)
		}
	}
	return &l, nil
}

// GetLocus retrieves a locus by path.
func (s *Store) GetLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.readTree(dialogueID)
	if err != nil {
		return nil, err
	}
	l, ok := tree[locus.Normalize(path)]
	if !ok {
		return nil, domain.ErrNoSuchLocus
	}
	return &l, nil
}

// ListLoci returns the dialogue's loci in canonical order.
func (s *Store) ListLoci(ctx context.Context, dialogueID string) ([]domain.Locus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.readTree(dialogueID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Locus, 0, len(tree))
	for _, l := range tree {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b domain.Locus) int { return locus.Compare(a.Path, b.Path) })
	return out, nil
}

func (s *Store) readTree(dialogueID string) (map[string]domain.Locus, error) {
	tree := map[string]domain.Locus{}
	data, err := os.ReadFile(s.lociPath(dialogueID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tree, nil
		}
		return nil, fmt.Errorf("failed to read locus file: %w", err)
	}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal locus tree: %w", err)
	}
	return tree, nil
}

// CreateDesign writes a new design file.
func (s *Store) CreateDesign(ctx context.Context, d *domain.Design) error {
	if d.ID == "" {
		return fmt.Errorf("design ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.designPath(d.ID)); err == nil {
		return domain.ErrDesignExists
	}
	return writeJSON(s.designPath(d.ID), d)
}

// GetDesign reads a design file.
func (s *Store) GetDesign(ctx context.Context, id string) (*domain.Design, error) {
	if id == "" {
		return nil, fmt.Errorf("design ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readDesign(id)
}

func (s *Store) readDesign(id string) (*domain.Design, error) {
	data, err := os.ReadFile(s.designPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNoSuchDesign
		}
		return nil, fmt.Errorf("failed to read design file: %w", err)
	}
	var d domain.Design
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal design: %w", err)
	}
	if d.Acts == nil {
		d.Acts = []domain.Act{}
	}
	d.SortActs()
	return &d, nil
}

// SaveDesign overwrites an existing design file.
func (s *Store) SaveDesign(ctx context.Context, d *domain.Design) error {
	if d.ID == "" {
		return fmt.Errorf("design ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.designPath(d.ID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrNoSuchDesign
		}
		return fmt.Errorf("failed to stat design file: %w", err)
	}
	return writeJSON(s.designPath(d.ID), d)
}

// DeleteDesign removes the design file.
func (s *Store) DeleteDesign(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("design ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.designPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return domain.ErrNoSuchDesign
	}
	if err != nil {
		return fmt.Errorf("failed to delete design file: %w", err)
	}
	return nil
}

// ListDesigns scans the design directory.
func (s *Store) ListDesigns(ctx context.Context, dialogueID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.BasePath, "designs"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list designs: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		if dialogueID != "" {
			d, err := s.readDesign(id)
			if err != nil || d.DeliberationID != dialogueID {
				continue
			}
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// writeJSON persists v atomically: it writes a temporary file in the same
// directory, syncs it and renames it over the destination.
func writeJSON(destPath string, v any) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure store directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // gone already once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// cannot rename an open file on Windows
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
