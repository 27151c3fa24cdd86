package chronicle

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

// MetaClonedFrom records the source locus of a cloned act.
const MetaClonedFrom = "cloned_from"

// CloneSubtree copies every proper act at from or below into the parallel subtree
// rooted at to and returns the new design.
//
// The source acts are kept. Justifications pointing inside the source subtree are
// rebased onto the destination. When to has not been opened yet, the act at its
// parent gets the missing ramification segment; that is the only in-place rewrite.
// Cloned acts go before a trailing daimon. CreatedLoci is left for the caller, who
// owns the locus tree.
func CloneSubtree(d *domain.Design, from, to string) (*domain.Design, domain.CloneResult, error) {
	var res domain.CloneResult
	from, to = locus.Normalize(from), locus.Normalize(to)
	fail := func(format string, args ...any) error {
		return &domain.ChronicleError{DesignID: d.ID, Locus: to, Reason: fmt.Sprintf(format, args...)}
	}
	if err := locus.Validate(from); err != nil {
		return nil, res, fail("source: %v", err)
	}
	if err := locus.Validate(to); err != nil {
		return nil, res, fail("destination: %v", err)
	}
	if locus.IsPrefix(from, to) {
		return nil, res, fail("destination lies inside the source subtree %q", from)
	}
	t, err := replay(d)
	if err != nil {
		return nil, res, err
	}

	var source []domain.Act
	for _, a := range d.Acts {
		if !a.IsDaimon() && locus.IsPrefix(from, a.LocusPath) {
			source = append(source, a)
		}
	}
	if len(source) == 0 {
		return nil, res, fmt.Errorf("%w: no acts under %q in design %q", domain.ErrNoSuchLocus, from, d.ID)
	}

	next := d.Clone()
	if !t.opened[to] {
		parent := locus.Parent(to)
		idx := slices.IndexFunc(next.Acts, func(a domain.Act) bool {
			return a.LocusPath == parent && !a.IsDaimon()
		})
		if idx < 0 {
			return nil, res, fail("no act at %q to open the destination", parent)
		}
		next.Acts[idx].Ramification = append(next.Acts[idx].Ramification, locus.Last(to))
	}

	clones := make([]domain.Act, 0, len(source))
	for _, a := range source {
		dest, _ := locus.Rebase(a.LocusPath, from, to)
		if t.used[dest] {
			return nil, res, fail("destination locus %q is already played", dest)
		}
		c := a.Clone()
		c.ID = uuid.NewString()
		c.LocusPath = dest
		if j, ok := locus.Rebase(a.JustifiedByLocus, from, to); ok && a.JustifiedByLocus != "" {
			c.JustifiedByLocus = j
		}
		if c.Meta == nil {
			c.Meta = map[string]string{}
		}
		c.Meta[MetaClonedFrom] = a.LocusPath
		clones = append(clones, c)
		res.Destinations = append(res.Destinations, dest)
	}

	if last, ok := next.Last(); ok && last.IsDaimon() {
		rest := next.Acts[:len(next.Acts)-1]
		next.Acts = append(append(slices.Clone(rest), clones...), last)
	} else {
		next.Acts = append(next.Acts, clones...)
	}
	for i := range next.Acts {
		next.Acts[i].OrderInDesign = i
	}
	if err := Validate(next); err != nil {
		return nil, domain.CloneResult{}, err
	}
	next.Version++
	res.ClonedActs = len(clones)
	return next, res, nil
}
