// Package correspondence moves between the Design and the Strategy representations
// of a dialogue behavior and checks that the two agree.
package correspondence

import (
	"fmt"
	"slices"

	"github.com/aretw0/ludics/internal/chronicle"
	"github.com/aretw0/ludics/internal/dispute"
	"github.com/aretw0/ludics/internal/interaction"
	"github.com/aretw0/ludics/internal/strategy"
	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

// Options carries the budgets of the underlying computations.
type Options struct {
	Interaction interaction.Options
	Plays       strategy.Options
}

// StrategyID names the strategy derived from a design.
func StrategyID(designID string) string {
	return "strategy/" + designID
}

// DesignToStrategy derives the strategy of d from its disputes against counters:
// the views of every dispute for d's player, closed by Plays(V).
func DesignToStrategy(d *domain.Design, counters []*domain.Design, opts Options) (*domain.Strategy, *domain.DisputeSet, error) {
	set, err := dispute.Compute(d, counters, opts.Interaction)
	if err != nil {
		return nil, nil, err
	}
	views := strategy.ViewsOf(dispute.Plays(set), d.Role())
	res, err := strategy.ComputePlays(views, opts.Plays)
	if err != nil {
		return nil, nil, err
	}
	if res.Player == "" {
		res.Player = d.Role()
	}
	return strategy.Build(StrategyID(d.ID), d.ID, res), set, nil
}

// StrategyToDesign collects the player's acts of every play, in first-seen order
// and once per locus, into a chronicle. A daimon goes last. When origin is given
// the design takes its identity, deliberation and participant.
func StrategyToDesign(s *domain.Strategy, origin *domain.Design) (*domain.Design, error) {
	id := "design/" + s.ID
	d := domain.NewDesign(id, "", "", s.Player)
	if origin != nil {
		d = domain.NewDesign(origin.ID, origin.DeliberationID, origin.ParticipantID, s.Player)
		d.RootLocusID = origin.RootLocusID
		d.Semantics = origin.Semantics
	}
	if len(s.Plays) > 0 && len(s.Plays[0].Sequence) > 0 {
		d.RootPath = s.Plays[0].Sequence[0].LocusPath
	}

	var acts []domain.Act
	var daimon *domain.Act
	seen := map[string]string{}
	for _, p := range s.Plays {
		for _, a := range p.Sequence {
			if a.Polarity != s.Player {
				continue
			}
			if prev, ok := seen[a.LocusPath]; ok {
				if prev != a.Key() {
					return nil, &domain.ChronicleError{DesignID: id, Locus: a.LocusPath, Reason: "strategy plays the locus two ways"}
				}
				continue
			}
			seen[a.LocusPath] = a.Key()
			if a.IsDaimon() {
				if daimon != nil {
					return nil, &domain.ChronicleError{DesignID: id, Locus: a.LocusPath, Reason: "strategy holds more than one daimon"}
				}
				c := a.Clone()
				daimon = &c
				continue
			}
			acts = append(acts, a.Clone())
		}
	}
	if daimon != nil {
		acts = append(acts, *daimon)
	}

	var err error
	for _, a := range acts {
		a.ID, a.DesignID, a.OrderInDesign = "", "", 0
		if d, err = chronicle.AppendAct(d, a); err != nil {
			return nil, fmt.Errorf("strategy %s is not a chronicle: %w", s.ID, err)
		}
	}
	d.Version = 0
	return d, nil
}

// CounterDesigns builds one opponent design per play, holding the opponent's acts
// of that play. These witness every play of s when no counters are at hand.
//
// A play taken from a view may skip the opponent act that opened a locus. Such a
// locus is opened by the opponent act at its parent found in another play of s,
// or else by a wildcard act mirroring the player's ramification there.
func CounterDesigns(s *domain.Strategy) ([]*domain.Design, error) {
	opp := s.Player.Opposite()
	openers := map[string][]domain.Act{}
	for _, p := range s.Plays {
		for _, a := range p.Sequence {
			if a.Polarity == opp && !a.IsDaimon() {
				openers[a.LocusPath] = append(openers[a.LocusPath], a)
			}
		}
	}

	out := make([]*domain.Design, 0, len(s.Plays))
	for _, p := range s.Plays {
		c := domain.NewDesign("counter/"+p.ID, "", "counter/"+p.ID, opp)
		if len(p.Sequence) > 0 {
			c.RootPath = p.Sequence[0].LocusPath
		}
		b := &counterBuilder{
			design:  c,
			play:    p.Sequence,
			openers: openers,
			opened:  map[string]bool{c.Root(): true},
			used:    map[string]bool{},
		}
		for _, a := range p.Sequence {
			if a.Polarity != opp {
				continue
			}
			if err := b.open(a.LocusPath); err != nil {
				return nil, fmt.Errorf("counter for play %s: %w", p.ID, err)
			}
			if err := b.append(a); err != nil {
				return nil, fmt.Errorf("counter for play %s: %w", p.ID, err)
			}
		}
		out = append(out, b.design)
	}
	return out, nil
}

type counterBuilder struct {
	design  *domain.Design
	play    []domain.Act
	openers map[string][]domain.Act
	opened  map[string]bool
	used    map[string]bool
}

func (b *counterBuilder) append(a domain.Act) error {
	a = a.Clone()
	a.ID, a.DesignID, a.OrderInDesign = "", "", 0
	d, err := chronicle.AppendAct(b.design, a)
	if err != nil {
		return err
	}
	b.design = d
	b.used[a.LocusPath] = true
	for _, child := range locus.ChildPaths(a.LocusPath, a.Ramification) {
		b.opened[child] = true
	}
	return nil
}

// open makes sure path is open, playing openers at its ancestors when needed.
// A parent already played without path in its ramification is left for
// AppendAct to reject.
func (b *counterBuilder) open(path string) error {
	parent := locus.Parent(path)
	if b.opened[path] || parent == "" || b.used[parent] {
		return nil
	}
	if err := b.open(parent); err != nil {
		return err
	}
	seg := locus.Last(path)
	for _, a := range b.openers[parent] {
		if slices.Contains(a.Ramification, seg) {
			return b.append(a)
		}
	}
	ram := []string{seg}
	for _, a := range b.play {
		if a.Polarity != b.design.Role() && a.LocusPath == parent && slices.Contains(a.Ramification, seg) {
			ram = slices.Clone(a.Ramification)
			break
		}
	}
	return b.append(domain.Act{
		Kind:         domain.KindProper,
		Polarity:     b.design.Role(),
		LocusPath:    parent,
		Expression:   domain.Wildcard,
		Ramification: ram,
	})
}
