// Package chronicle enforces the ordering and justification rules of a design's acts.
//
// Every function here is pure: it returns a new design or an error and never
// mutates the design it was given, so a rejected append leaves nothing behind.
package chronicle

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

// tracker replays a chronicle and knows which loci are open and which are played.
type tracker struct {
	design *domain.Design
	opened map[string]bool
	order  []string
	used   map[string]bool
	closed bool
}

func newTracker(d *domain.Design) *tracker {
	root := d.Root()
	return &tracker{
		design: d,
		opened: map[string]bool{root: true},
		order:  []string{root},
		used:   map[string]bool{},
	}
}

func (t *tracker) fail(path, format string, args ...any) error {
	return &domain.ChronicleError{DesignID: t.design.ID, Locus: path, Reason: fmt.Sprintf(format, args...)}
}

// free returns the open, unplayed loci, most recently opened first.
func (t *tracker) free() []string {
	var out []string
	for i := len(t.order) - 1; i >= 0; i-- {
		if p := t.order[i]; !t.used[p] {
			out = append(out, p)
		}
	}
	return out
}

// place resolves the locus of act, applying the daimon default placement.
func (t *tracker) place(act domain.Act) (string, error) {
	if act.IsDaimon() && act.LocusPath == "" {
		free := t.free()
		if len(free) == 0 {
			return "", t.fail("", "daimon has no open locus to close")
		}
		return free[0], nil
	}
	path := locus.Normalize(act.LocusPath)
	if err := locus.Validate(path); err != nil {
		return "", t.fail(path, "%v", err)
	}
	return path, nil
}

func (t *tracker) check(act domain.Act, path string) error {
	switch {
	case !act.Kind.Valid():
		return t.fail(path, "unknown act kind %q", act.Kind)
	case !act.Polarity.Valid():
		return t.fail(path, "unknown polarity %q", act.Polarity)
	case act.Polarity != t.design.Role():
		return t.fail(path, "polarity %s does not match design role %s", act.Polarity, t.design.Role())
	case t.closed:
		return t.fail(path, "no act may follow a daimon")
	case !t.opened[path]:
		return t.fail(path, "locus is neither the root nor opened by an earlier act")
	case t.used[path]:
		return t.fail(path, "locus already played in this design")
	case act.IsDaimon() && len(act.Ramification) > 0:
		return t.fail(path, "a daimon opens no loci")
	}
	seen := make(map[string]bool, len(act.Ramification))
	for _, seg := range act.Ramification {
		if !locus.ValidSegment(seg) {
			return t.fail(path, "invalid ramification segment %q", seg)
		}
		if seen[seg] {
			return t.fail(path, "duplicate ramification segment %q", seg)
		}
		seen[seg] = true
	}
	if act.JustifiedByLocus != "" {
		if err := locus.Validate(act.JustifiedByLocus); err != nil {
			return t.fail(path, "justified by malformed locus: %v", err)
		}
	}
	return nil
}

func (t *tracker) add(act domain.Act) {
	t.used[act.LocusPath] = true
	for _, child := range locus.ChildPaths(act.LocusPath, act.Ramification) {
		if !t.opened[child] {
			t.opened[child] = true
			t.order = append(t.order, child)
		}
	}
	if act.IsDaimon() {
		t.closed = true
	}
}

func replay(d *domain.Design) (*tracker, error) {
	t := newTracker(d)
	for i, act := range d.Acts {
		if act.OrderInDesign != i {
			return nil, t.fail(act.LocusPath, "act %d has order %d", i, act.OrderInDesign)
		}
		path, err := t.place(act)
		if err != nil {
			return nil, err
		}
		if path != act.LocusPath {
			return nil, t.fail(act.LocusPath, "act %d is not stored at its normalized locus", i)
		}
		if err := t.check(act, path); err != nil {
			return nil, err
		}
		t.add(act)
	}
	return t, nil
}

// Validate re-checks a whole design against the chronicle rules.
func Validate(d *domain.Design) error {
	_, err := replay(d)
	return err
}

// AppendAct returns a copy of d with act appended at the end of its chronicle.
//
// The act's order, design and identifier are assigned here. A daimon with an
// empty locus is placed at the most recently opened free locus.
func AppendAct(d *domain.Design, act domain.Act) (*domain.Design, error) {
	t, err := replay(d)
	if err != nil {
		return nil, err
	}
	path, err := t.place(act)
	if err != nil {
		return nil, err
	}
	if err := t.check(act, path); err != nil {
		return nil, err
	}

	next := d.Clone()
	a := act.Clone()
	a.LocusPath = path
	a.DesignID = d.ID
	a.OrderInDesign = len(next.Acts)
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Ramification == nil {
		a.Ramification = []string{}
	}
	next.Acts = append(next.Acts, a)
	next.HasDaimon = next.HasDaimon || a.IsDaimon()
	next.Version++
	return next, nil
}

// FreeLoci lists the loci d may still play at, most recently opened first.
// A closed design has none.
func FreeLoci(d *domain.Design) []string {
	t, err := replay(d)
	if err != nil || t.closed {
		return nil
	}
	return t.free()
}

// Chronicle returns the acts of d ordered by OrderInDesign.
func Chronicle(d *domain.Design) []domain.Act {
	acts := domain.CloneActs(d.Acts)
	slices.SortStableFunc(acts, func(a, b domain.Act) int {
		return a.OrderInDesign - b.OrderInDesign
	})
	return acts
}
