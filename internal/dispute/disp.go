// Package dispute computes Disp(D): the disputes a design plays against its counter-designs.
package dispute

import (
	"fmt"

	"github.com/aretw0/ludics/internal/interaction"
	"github.com/aretw0/ludics/pkg/domain"
)

// ID derives the identifier of the dispute between a design and one counter-design.
func ID(designID, counterID string) string {
	return designID + "/" + counterID
}

// Compute runs d against every candidate counter-design, in order, and keeps the
// non-divergent interactions as disputes.
//
// Candidates that are d itself, belong to d's participant or live in another
// deliberation are not counter-designs of d and are reported in Skipped.
func Compute(d *domain.Design, counters []*domain.Design, opts interaction.Options) (*domain.DisputeSet, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil design", domain.ErrNoSuchDesign)
	}
	set := &domain.DisputeSet{DesignID: d.ID, Disputes: []domain.Dispute{}}
	for _, c := range counters {
		if c == nil {
			continue
		}
		if !IsCounter(d, c) {
			set.Skipped = append(set.Skipped, c.ID)
			continue
		}
		res, err := interaction.Step(d, c, opts)
		if err != nil {
			return nil, fmt.Errorf("dispute %s: %w", ID(d.ID, c.ID), err)
		}
		if res.Status == domain.StatusDivergent {
			set.Divergent = append(set.Divergent, c.ID)
			continue
		}
		set.Disputes = append(set.Disputes, domain.Dispute{
			ID:              ID(d.ID, c.ID),
			DesignID:        d.ID,
			CounterDesignID: c.ID,
			Pairs:           res.Pairs,
			Length:          len(res.Pairs),
			Status:          res.Status,
			DaimonHints:     res.DaimonHints,
			Terminal:        res.Terminal,
		})
	}
	set.Count = len(set.Disputes)
	return set, nil
}

// IsCounter reports whether c may be played against d.
func IsCounter(d, c *domain.Design) bool {
	if c.ID != "" && c.ID == d.ID {
		return false
	}
	if c.ParticipantID != "" && c.ParticipantID == d.ParticipantID {
		return false
	}
	if c.DeliberationID != "" && d.DeliberationID != "" && c.DeliberationID != d.DeliberationID {
		return false
	}
	return c.Role() != d.Role()
}

// Orthogonal reports whether a and b interact without diverging and end on a daimon.
func Orthogonal(a, b *domain.Design, opts interaction.Options) (bool, *domain.Interaction, error) {
	res, err := interaction.Step(a, b, opts)
	if err != nil {
		return false, nil, err
	}
	return res.Status == domain.StatusConvergent, res, nil
}

// PlayOf linearises a dispute into a play: for every pair the P act then the O act.
// In a pair holding a daimon the proper act comes first; an unpaired terminal
// daimon closes the play.
func PlayOf(pairs []domain.Pair, terminal *domain.Act) []domain.Act {
	seq := make([]domain.Act, 0, 2*len(pairs)+1)
	for _, p := range pairs {
		first, second := p.P, p.O
		if first.IsDaimon() && !second.IsDaimon() {
			first, second = second, first
		}
		seq = append(seq, first.Clone(), second.Clone())
	}
	if terminal != nil {
		seq = append(seq, terminal.Clone())
	}
	return seq
}

// Plays linearises every dispute of a set.
func Plays(set *domain.DisputeSet) [][]domain.Act {
	out := make([][]domain.Act, 0, len(set.Disputes))
	for _, d := range set.Disputes {
		out = append(out, PlayOf(d.Pairs, d.Terminal))
	}
	return out
}
