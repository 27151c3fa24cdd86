package behaviour

import (
	"fmt"

	"github.com/aretw0/ludics/internal/chronicle"
	"github.com/aretw0/ludics/internal/dispute"
	"github.com/aretw0/ludics/internal/strategy"
	"github.com/aretw0/ludics/pkg/domain"
)

// Incarnation returns the essential core of play for player: its view cut down
// to the justification chain of the last act.
func Incarnation(play []domain.Act, player domain.Polarity) []domain.Act {
	view := strategy.View(play, player)
	if len(view) == 0 {
		return nil
	}
	keep := make([]bool, len(view))
	for k := len(view) - 1; k >= 0; k = strategy.Justifier(view, k) {
		keep[k] = true
	}
	out := make([]domain.Act, 0, len(view))
	for k, a := range view {
		if keep[k] {
			out = append(out, a)
		}
	}
	return out
}

// IsMinimal reports whether inc is its own incarnation.
func IsMinimal(inc []domain.Act, player domain.Polarity) bool {
	return domain.SequenceKey(Incarnation(inc, player)) == domain.SequenceKey(inc)
}

// DesignIncarnation is the part of a design visited by its orthogonal counters.
type DesignIncarnation struct {
	Design *domain.Design `json:"design"`
	// Counters lists the counter-designs orthogonal to the design.
	Counters []string `json:"counters"`
	// Dropped lists the loci no orthogonal counter reached.
	Dropped []string `json:"dropped"`
}

// IncarnateDesign keeps the acts of d paired, or ending the interaction, in a
// convergent run against some counter. Counters of d's polarity are ignored.
func IncarnateDesign(d *domain.Design, counters []*domain.Design, opts Options) (*DesignIncarnation, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil design", domain.ErrNoSuchDesign)
	}
	res := &DesignIncarnation{Counters: []string{}, Dropped: []string{}}
	visited := map[string]bool{}
	for _, c := range counters {
		if c == nil || c.Role() == d.Role() {
			continue
		}
		ok, in, err := dispute.Orthogonal(d, c, opts.Interaction)
		if err != nil {
			return nil, fmt.Errorf("incarnation of %s against %s: %w", d.ID, c.ID, err)
		}
		if !ok {
			continue
		}
		res.Counters = append(res.Counters, c.ID)
		for _, p := range in.Pairs {
			visited[p.Locus] = true
		}
		if in.Terminal != nil && in.Terminal.Polarity == d.Role() {
			visited[in.Terminal.LocusPath] = true
		}
	}

	out := d.Clone()
	out.Acts = []domain.Act{}
	out.HasDaimon = false
	for _, a := range d.Acts {
		if !visited[a.LocusPath] {
			res.Dropped = append(res.Dropped, a.LocusPath)
			continue
		}
		a = a.Clone()
		a.OrderInDesign = 0
		next, err := chronicle.AppendAct(out, a)
		if err != nil {
			return nil, fmt.Errorf("incarnation of %s: %w", d.ID, err)
		}
		out = next
	}
	out.Version = d.Version
	res.Design = out
	return res, nil
}
