package strategy

import (
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

// InnocenceReport splits innocence into its three ingredients.
type InnocenceReport struct {
	// Deterministic: after a given view the player answers a locus one way only.
	// Answers at different loci reflect the opponent's choice of locus.
	Deterministic bool `json:"deterministic"`
	// ViewStable: taking the view of a view changes nothing.
	ViewStable bool `json:"view_stable"`
	// Saturated: every continuation determined by a view is present.
	Saturated  bool     `json:"saturated"`
	IsInnocent bool     `json:"is_innocent"`
	Violations []string `json:"violations,omitempty"`
}

// CheckInnocence inspects the plays of player.
func CheckInnocence(plays [][]domain.Act, player domain.Polarity) InnocenceReport {
	rep := InnocenceReport{Deterministic: true, ViewStable: true, Saturated: true}
	set := &playSet{keys: map[string]bool{}}
	for _, p := range plays {
		set.add(p)
	}
	resp := responses(plays, player)

	for _, vkey := range slices.Sorted(maps.Keys(resp)) {
		for _, path := range conflicts(resp[vkey]) {
			rep.Deterministic = false
			rep.Violations = append(rep.Violations, fmt.Sprintf("locus %s answered two ways after view %s", path, shortKey(vkey)))
		}
	}
	for _, p := range plays {
		for k := 1; k <= len(p); k++ {
			v := View(p[:k], player)
			if domain.SequenceKey(View(v, player)) != domain.SequenceKey(v) {
				rep.ViewStable = false
				rep.Violations = append(rep.Violations, fmt.Sprintf("view of %s is not stable", domain.SequenceID(p[:k])))
			}
			for _, c := range resp[domain.SequenceKey(v)] {
				cand := append(domain.CloneActs(p[:k]), c)
				if Legal(cand) && !set.covers(cand) {
					rep.Saturated = false
					rep.Violations = append(rep.Violations, fmt.Sprintf("missing continuation %s after %s", c.LocusPath, domain.SequenceID(p[:k])))
				}
			}
		}
	}
	rep.IsInnocent = rep.Deterministic && rep.ViewStable && rep.Saturated
	return rep
}

// CheckPropagation reports whether the player uses every locus with a single act
// across all plays, so that branches separated by an opponent choice never
// disagree on a shared address.
func CheckPropagation(plays [][]domain.Act, player domain.Polarity) (bool, []string) {
	var own []domain.Act
	for _, p := range plays {
		for _, a := range p {
			if a.Polarity == player {
				own = append(own, a)
			}
		}
	}
	var violations []string
	for _, path := range conflicts(own) {
		violations = append(violations, fmt.Sprintf("locus %s is played two ways", path))
	}
	return len(violations) == 0, violations
}

// conflicts lists, in first-seen order, the loci carrying more than one distinct act.
func conflicts(acts []domain.Act) []string {
	byLocus := map[string]string{}
	reported := map[string]bool{}
	var out []string
	for _, a := range acts {
		prev, ok := byLocus[a.LocusPath]
		if ok && prev != a.Key() && !reported[a.LocusPath] {
			reported[a.LocusPath] = true
			out = append(out, a.LocusPath)
		}
		if !ok {
			byLocus[a.LocusPath] = a.Key()
		}
	}
	return out
}

// StructureReport holds the structural checks of a play set.
type StructureReport struct {
	Linear     bool     `json:"linear"`
	Legal      bool     `json:"legal"`
	Violations []string `json:"violations,omitempty"`
}

// CheckPlayStructure verifies linearity (no act twice in a play), that every act
// has a valid polarity and locus, and that every play is legal.
func CheckPlayStructure(plays [][]domain.Act) StructureReport {
	rep := StructureReport{Linear: true, Legal: true}
	for i, p := range plays {
		seen := map[string]bool{}
		for _, a := range p {
			if seen[a.Key()] {
				rep.Linear = false
				rep.Violations = append(rep.Violations, fmt.Sprintf("play %d repeats %s at %s", i, a.Polarity, a.LocusPath))
			}
			seen[a.Key()] = true
			if !a.Polarity.Valid() || locus.Validate(a.LocusPath) != nil {
				rep.Legal = false
				rep.Violations = append(rep.Violations, fmt.Sprintf("play %d has a malformed act at %q", i, a.LocusPath))
			}
		}
		if !Legal(p) {
			rep.Legal = false
			rep.Violations = append(rep.Violations, fmt.Sprintf("play %d is not a legal play", i))
		}
	}
	return rep
}

// Build turns a Plays(V) result into a strategy with its diagnostics filled in.
func Build(id, designID string, res *PlaysResult) *domain.Strategy {
	seqs := Sequences(res.Plays)
	inn := CheckInnocence(seqs, res.Player)
	prop, propViolations := CheckPropagation(seqs, res.Player)
	return &domain.Strategy{
		ID:                   id,
		DesignID:             designID,
		Player:               res.Player,
		Plays:                res.Plays,
		PlayCount:            res.PlayCount,
		IsInnocent:           inn.IsInnocent,
		SatisfiesPropagation: prop,
		IsSmallest:           res.IsSmallest,
		Iterations:           res.Iterations,
		Diagnostics: domain.StrategyDiagnostics{
			Deterministic: inn.Deterministic,
			ViewStable:    inn.ViewStable,
			Saturated:     inn.Saturated,
			Innocence:     inn.Violations,
			Propagation:   propViolations,
		},
	}
}

func shortKey(k string) string {
	if k == "" {
		return "(empty)"
	}
	if len(k) > 48 {
		return k[:48] + "..."
	}
	return k
}
