package ports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

// LocusStore persists the locus tree of each dialogue.
type LocusStore interface {
	// EnsureLocus creates the locus at path, and every missing ancestor, or returns
	// the existing one. It is idempotent: one locus per (dialogueID, path).
	// Returns domain.ErrEnsureLocusFailed for a malformed path.
	EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error)

	// GetLocus returns domain.ErrNoSuchLocus if the path was never ensured.
	GetLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error)

	// ListLoci returns the loci of a dialogue in canonical path order.
	ListLoci(ctx context.Context, dialogueID string) ([]domain.Locus, error)
}

// DesignStore persists designs. Acts are stored with their design and come back
// ordered by OrderInDesign.
type DesignStore interface {
	// CreateDesign returns domain.ErrDesignExists if the ID is taken.
	CreateDesign(ctx context.Context, d *domain.Design) error

	// GetDesign returns domain.ErrNoSuchDesign if the design does not exist.
	GetDesign(ctx context.Context, id string) (*domain.Design, error)

	// SaveDesign overwrites an existing design.
	// Returns domain.ErrNoSuchDesign if the design does not exist.
	SaveDesign(ctx context.Context, d *domain.Design) error

	// DeleteDesign removes a design.
	// Returns domain.ErrNoSuchDesign if the design does not exist.
	DeleteDesign(ctx context.Context, id string) error

	// ListDesigns returns the IDs of the designs of a dialogue, sorted.
	// An empty dialogueID lists every design.
	ListDesigns(ctx context.Context, dialogueID string) ([]string, error)
}

// Store is what every persistence adapter provides.
type Store interface {
	LocusStore
	DesignStore
}

// LocusChain validates path and returns it with its ancestors, root first.
// Adapters create the chain in order when ensuring a locus.
func LocusChain(path string) ([]string, error) {
	path = locus.Normalize(path)
	if err := locus.Validate(path); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEnsureLocusFailed, err)
	}
	return append(locus.Ancestors(path), path), nil
}

// NewLocus builds a fresh locus record for path.
func NewLocus(dialogueID, path string) domain.Locus {
	return domain.Locus{
		ID:         uuid.NewString(),
		DialogueID: dialogueID,
		Path:       path,
		ParentPath: locus.Parent(path),
		CreatedAt:  time.Now().UTC(),
	}
}
