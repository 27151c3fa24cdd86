package strategy

import (
	"fmt"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

const (
	DefaultMaxIterations = 64
	DefaultMaxPlays      = 4096
)

// Options bounds the Plays(V) fixpoint.
type Options struct {
	MaxIterations int
	MaxPlays      int
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxPlays <= 0 {
		o.MaxPlays = DefaultMaxPlays
	}
	return o
}

// PlaysResult is the outcome of ComputePlays.
//
// IsSmallest is false when a bound stopped the fixpoint early; the plays are then
// a lower bound of the smallest innocent strategy.
type PlaysResult struct {
	Player     domain.Polarity `json:"player"`
	Plays      []domain.Play   `json:"plays"`
	PlayCount  int             `json:"play_count"`
	IsSmallest bool            `json:"is_smallest"`
	Iterations int             `json:"iterations"`
}

// playSet is an insertion-ordered set of sequences standing for its prefix closure.
type playSet struct {
	seqs [][]domain.Act
	keys map[string]bool
}

func (s *playSet) add(seq []domain.Act) bool {
	key := domain.SequenceKey(seq)
	if s.keys[key] {
		return false
	}
	s.keys[key] = true
	s.seqs = append(s.seqs, seq)
	return true
}

// covers reports whether seq belongs to the prefix closure of the set.
func (s *playSet) covers(seq []domain.Act) bool {
	if s.keys[domain.SequenceKey(seq)] {
		return true
	}
	for _, t := range s.seqs {
		if IsPrefix(seq, t) {
			return true
		}
	}
	return false
}

// responses maps a view key to the moves player made right after that view, in
// first-seen order.
func responses(seqs [][]domain.Act, player domain.Polarity) map[string][]domain.Act {
	resp := map[string][]domain.Act{}
	seen := map[string]bool{}
	for _, s := range seqs {
		for k, a := range s {
			if a.Polarity != player {
				continue
			}
			vkey := domain.SequenceKey(View(s[:k], player))
			rkey := vkey + "=>" + a.Key()
			if seen[rkey] {
				continue
			}
			seen[rkey] = true
			resp[vkey] = append(resp[vkey], a)
		}
	}
	return resp
}

// Legal reports whether seq is a well-formed play: nothing follows a daimon, no
// player plays a locus twice, and every act sits at the base or at a locus opened
// by an earlier act.
func Legal(seq []domain.Act) bool {
	if len(seq) == 0 {
		return true
	}
	opened := map[string]bool{seq[0].LocusPath: true}
	played := map[string]bool{}
	for i, a := range seq {
		if i > 0 && seq[i-1].IsDaimon() {
			return false
		}
		key := string(a.Polarity) + "@" + a.LocusPath
		if played[key] || !opened[a.LocusPath] {
			return false
		}
		played[key] = true
		for _, child := range locus.ChildPaths(a.LocusPath, a.Ramification) {
			opened[child] = true
		}
	}
	return true
}

// ComputePlays closes a view set into the smallest set of plays that contains every
// view and is closed under the innocence rule: a continuation the player took after
// some view is also taken after every play prefix showing that same view.
//
// The closure is an explicit work-list bounded by opts; an empty view set gives the
// empty strategy.
func ComputePlays(views []domain.View, opts Options) (*PlaysResult, error) {
	res := &PlaysResult{Plays: []domain.Play{}, IsSmallest: true}
	if len(views) == 0 {
		return res, nil
	}
	opts = opts.withDefaults()
	player := views[0].Player
	if !player.Valid() {
		return nil, fmt.Errorf("view 0: invalid player %q", player)
	}
	seeds := make([][]domain.Act, 0, len(views))
	for i, v := range views {
		if v.Player != player {
			return nil, fmt.Errorf("%w: view %d is for %s, view 0 for %s", domain.ErrMixedPlayers, i, v.Player, player)
		}
		seeds = append(seeds, domain.CloneActs(v.Sequence))
	}
	seeds = Maximal(seeds)
	if len(seeds) == 0 {
		return res, nil
	}
	res.Player = player

	set := &playSet{keys: map[string]bool{}}
	for _, s := range seeds {
		if len(set.seqs) >= opts.MaxPlays {
			res.IsSmallest = false
			break
		}
		set.add(s)
	}

	for res.IsSmallest {
		if res.Iterations >= opts.MaxIterations {
			res.IsSmallest = false
			break
		}
		res.Iterations++
		added, full := closeOnce(set, player, opts.MaxPlays)
		if full {
			res.IsSmallest = false
		}
		if added == 0 {
			break
		}
	}

	for _, s := range Maximal(set.seqs) {
		res.Plays = append(res.Plays, domain.NewPlay(s))
	}
	res.PlayCount = len(res.Plays)
	return res, nil
}

// closeOnce applies the innocence rule to every play prefix known at the start of
// the pass. It reports how many plays it added and whether maxPlays stopped it.
func closeOnce(set *playSet, player domain.Polarity, maxPlays int) (int, bool) {
	resp := responses(set.seqs, player)
	added := 0
	n := len(set.seqs)
	for i := 0; i < n; i++ {
		t := set.seqs[i]
		for k := 1; k <= len(t); k++ {
			prefix := t[:k]
			for _, c := range resp[domain.SequenceKey(View(prefix, player))] {
				cand := append(domain.CloneActs(prefix), c.Clone())
				if !Legal(cand) || set.covers(cand) {
					continue
				}
				if len(set.seqs) >= maxPlays {
					return added, true
				}
				set.add(cand)
				added++
			}
		}
	}
	return added, false
}
