// Package interaction computes the interaction of a positive and a negative design.
//
// The stepper is read-only over its inputs. Interaction advances along the locus
// tree: a locus becomes reachable once the pair at its parent opened it, and the
// reachable loci are visited in canonical locus order, so the outcome depends on
// the designs' acts and not on how their chronicles happen to be ordered.
package interaction

import (
	"fmt"
	"slices"
	"sort"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

// DefaultMaxPairs bounds an interaction when the caller gives no budget.
const DefaultMaxPairs = 1024

// CompatibilityFunc decides whether two acts paired at a locus may go on.
// It returns a non-empty reason when they may not.
type CompatibilityFunc func(p, o domain.Act) string

// Options configures one interaction.
type Options struct {
	// Phase is reserved for multi-phase dialogues and echoed in the result.
	Phase      string
	MaxPairs   int
	Compatible CompatibilityFunc
}

// Compatible is the default orthogonality test: expressions match unless one side
// is a wildcard, and both acts open the same sub-loci.
func Compatible(p, o domain.Act) string {
	if p.IsDaimon() || o.IsDaimon() {
		return ""
	}
	if !p.IsWildcard() && !o.IsWildcard() && p.Expression != o.Expression {
		return fmt.Sprintf("expression %q does not answer %q", o.Expression, p.Expression)
	}
	if !sameSet(p.Ramification, o.Ramification) {
		return fmt.Sprintf("ramification %v does not match %v", o.Ramification, p.Ramification)
	}
	return ""
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// side is one design's cursor: its acts indexed by locus and the consumed set.
type side struct {
	design   *domain.Design
	byLocus  map[string]int
	consumed map[int]bool
}

func newSide(d *domain.Design) *side {
	s := &side{design: d, byLocus: make(map[string]int, len(d.Acts)), consumed: map[int]bool{}}
	for i, a := range d.Acts {
		path := locus.Normalize(a.LocusPath)
		if _, dup := s.byLocus[path]; !dup {
			s.byLocus[path] = i
		}
	}
	return s
}

// at returns the unconsumed act at path.
func (s *side) at(path string) (int, bool) {
	i, ok := s.byLocus[path]
	if !ok || s.consumed[i] {
		return 0, false
	}
	return i, true
}

// pending reports whether an unconsumed act remains.
func (s *side) pending() bool {
	return len(s.consumed) < len(s.design.Acts)
}

// Step runs the interaction between a and b. The design with polarity P is the
// positive side whatever the argument order.
func Step(a, b *domain.Design, opts Options) (*domain.Interaction, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: interaction needs two designs", domain.ErrNoSuchDesign)
	}
	pos, neg := a, b
	if a.Role() == b.Role() {
		return nil, fmt.Errorf("%w: %q and %q are both %s", domain.ErrPolarityMismatch, a.ID, b.ID, a.Role())
	}
	if a.Role() == domain.PolarityO {
		pos, neg = b, a
	}
	if opts.MaxPairs <= 0 {
		opts.MaxPairs = DefaultMaxPairs
	}
	if opts.Compatible == nil {
		opts.Compatible = Compatible
	}

	p, o := newSide(pos), newSide(neg)
	res := &domain.Interaction{
		Phase:       opts.Phase,
		PositiveID:  pos.ID,
		NegativeID:  neg.ID,
		Pairs:       []domain.Pair{},
		DaimonHints: []string{},
	}
	reachable := map[string]bool{pos.Root(): true}
	visited := map[string]bool{}

	for {
		path, ok := nextPairable(reachable, visited, p, o)
		if !ok {
			finish(res, reachable, visited, p, o)
			return res, nil
		}
		if len(res.Pairs) >= opts.MaxPairs {
			res.Status = domain.StatusOngoing
			res.BudgetExceeded = true
			return res, nil
		}

		pi, _ := p.at(path)
		oi, _ := o.at(path)
		pair := domain.Pair{Locus: path, P: pos.Acts[pi].Clone(), O: neg.Acts[oi].Clone()}
		if reason := opts.Compatible(pair.P, pair.O); reason != "" {
			res.Status = domain.StatusDivergent
			res.Divergence = &domain.Divergence{Locus: path, Reason: reason, P: pair.P, O: pair.O}
			return res, nil
		}

		p.consumed[pi], o.consumed[oi] = true, true
		visited[path] = true
		res.Pairs = append(res.Pairs, pair)

		if pair.HasDaimon() {
			res.Status = domain.StatusConvergent
			res.DaimonHints = append(res.DaimonHints, path)
			res.StuckPlayer = domain.PolarityP
			if !pair.P.IsDaimon() {
				res.StuckPlayer = domain.PolarityO
			}
			res.Winner = res.StuckPlayer.Opposite()
			return res, nil
		}
		for _, child := range locus.ChildPaths(path, pair.P.Ramification) {
			reachable[child] = true
		}
	}
}

// nextPairable picks the first reachable, unvisited locus where both sides still hold an act.
func nextPairable(reachable, visited map[string]bool, p, o *side) (string, bool) {
	var candidates []string
	for path := range reachable {
		if visited[path] {
			continue
		}
		if _, ok := p.at(path); !ok {
			continue
		}
		if _, ok := o.at(path); !ok {
			continue
		}
		candidates = append(candidates, path)
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool { return locus.Compare(candidates[i], candidates[j]) < 0 })
	return candidates[0], true
}

// finish classifies an interaction that has no pairing left.
func finish(res *domain.Interaction, reachable, visited map[string]bool, p, o *side) {
	if act, ok := terminalDaimon(reachable, visited, p, o); ok {
		res.Status = domain.StatusConvergent
		res.Terminal = &act
		res.DaimonHints = append(res.DaimonHints, act.LocusPath)
		res.StuckPlayer = act.Polarity
		res.Winner = act.Polarity.Opposite()
		return
	}
	res.Status = domain.StatusStuck
	switch {
	case p.pending() && !o.pending():
		res.StuckPlayer, res.Winner = domain.PolarityO, domain.PolarityP
	case o.pending() && !p.pending():
		res.StuckPlayer, res.Winner = domain.PolarityP, domain.PolarityO
	default:
		res.StuckPlayer = domain.PolarityP
	}
}

// terminalDaimon finds an unpaired daimon waiting at a reachable locus.
func terminalDaimon(reachable, visited map[string]bool, sides ...*side) (domain.Act, bool) {
	var found []domain.Act
	for path := range reachable {
		if visited[path] {
			continue
		}
		for _, s := range sides {
			if i, ok := s.at(path); ok && s.design.Acts[i].IsDaimon() {
				found = append(found, s.design.Acts[i].Clone())
			}
		}
	}
	if len(found) == 0 {
		return domain.Act{}, false
	}
	sort.SliceStable(found, func(i, j int) bool {
		if c := locus.Compare(found[i].LocusPath, found[j].LocusPath); c != 0 {
			return c < 0
		}
		return found[i].Polarity == domain.PolarityP && found[j].Polarity != domain.PolarityP
	})
	return found[0], true
}
