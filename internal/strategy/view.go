// Package strategy derives views from plays, closes view sets into innocent
// strategies and reports innocence and propagation diagnostics.
package strategy

import (
	"slices"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

// Justifier returns the index of the act justifying seq[k]: the latest earlier act
// of the other player at the same locus, else at the parent locus, else -1.
func Justifier(seq []domain.Act, k int) int {
	a := seq[k]
	other := a.Polarity.Opposite()
	for _, path := range []string{a.LocusPath, locus.Parent(a.LocusPath)} {
		if path == "" {
			break
		}
		for j := k - 1; j >= 0; j-- {
			if seq[j].Polarity == other && seq[j].LocusPath == path {
				return j
			}
		}
	}
	return -1
}

// View projects seq onto player: the player's own moves are kept, an opponent
// move keeps itself and jumps back to its justifier, and an opponent move with no
// justifier starts the view.
func View(seq []domain.Act, player domain.Polarity) []domain.Act {
	var idx []int
	for k := len(seq) - 1; k >= 0; {
		idx = append(idx, k)
		if seq[k].Polarity == player {
			k--
			continue
		}
		k = Justifier(seq, k)
	}
	slices.Reverse(idx)
	out := make([]domain.Act, len(idx))
	for i, k := range idx {
		out[i] = seq[k].Clone()
	}
	return out
}

// ViewsOf returns the views of every non-empty prefix of every play, keeping only
// maximal views in first-seen order.
func ViewsOf(plays [][]domain.Act, player domain.Polarity) []domain.View {
	var seqs [][]domain.Act
	seen := map[string]bool{}
	for _, play := range plays {
		for n := 1; n <= len(play); n++ {
			v := View(play[:n], player)
			key := domain.SequenceKey(v)
			if !seen[key] {
				seen[key] = true
				seqs = append(seqs, v)
			}
		}
	}
	maximal := Maximal(seqs)
	out := make([]domain.View, len(maximal))
	for i, s := range maximal {
		out[i] = domain.NewView(s, player)
	}
	return out
}

// Views re-derives the view set of a strategy.
func Views(s *domain.Strategy) []domain.View {
	return ViewsOf(Sequences(s.Plays), s.Player)
}

// Sequences extracts the act sequences of plays.
func Sequences(plays []domain.Play) [][]domain.Act {
	out := make([][]domain.Act, len(plays))
	for i, p := range plays {
		out[i] = p.Sequence
	}
	return out
}

// IsPrefix reports whether p is a prefix of s (by act keys).
func IsPrefix(p, s []domain.Act) bool {
	if len(p) > len(s) {
		return false
	}
	for i := range p {
		if p[i].Key() != s[i].Key() {
			return false
		}
	}
	return true
}

// Maximal drops duplicates and every sequence that is a strict prefix of another,
// preserving first-seen order.
func Maximal(seqs [][]domain.Act) [][]domain.Act {
	var out [][]domain.Act
	seen := map[string]bool{}
	for i, s := range seqs {
		key := domain.SequenceKey(s)
		if seen[key] || len(s) == 0 {
			continue
		}
		covered := false
		for j, o := range seqs {
			if i != j && len(o) > len(s) && IsPrefix(s, o) {
				covered = true
				break
			}
		}
		if !covered {
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

// SameViews compares two view sets as sets.
func SameViews(a, b []domain.View) (missing, extra []string) {
	ak, bk := map[string]bool{}, map[string]bool{}
	for _, v := range a {
		ak[domain.SequenceKey(v.Sequence)] = true
	}
	for _, v := range b {
		bk[domain.SequenceKey(v.Sequence)] = true
	}
	for _, v := range a {
		if k := domain.SequenceKey(v.Sequence); !bk[k] {
			missing = append(missing, domain.SequenceID(v.Sequence))
		}
	}
	for _, v := range b {
		if k := domain.SequenceKey(v.Sequence); !ak[k] {
			extra = append(extra, domain.SequenceID(v.Sequence))
		}
	}
	return missing, extra
}
