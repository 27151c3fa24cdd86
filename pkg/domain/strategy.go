package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// View is a player's projection of a play.
type View struct {
	Sequence   []Act    `json:"sequence"`
	Player     Polarity `json:"player"`
	IsPositive bool     `json:"is_positive"`
}

// Play is an interaction sequence seen as a member of a strategy.
type Play struct {
	ID         string `json:"id"`
	Sequence   []Act  `json:"sequence"`
	Length     int    `json:"length"`
	IsPositive bool   `json:"is_positive"`
}

// NewPlay builds a play whose ID is derived from its content.
func NewPlay(seq []Act) Play {
	return Play{
		ID:         SequenceID(seq),
		Sequence:   seq,
		Length:     len(seq),
		IsPositive: EndsPositive(seq),
	}
}

// NewView builds a view of player over seq.
func NewView(seq []Act, player Polarity) View {
	return View{Sequence: seq, Player: player, IsPositive: EndsPositive(seq)}
}

// EndsPositive reports whether the last act of seq was played by P.
func EndsPositive(seq []Act) bool {
	return len(seq) > 0 && seq[len(seq)-1].Polarity == PolarityP
}

// SequenceKey joins the behavioral keys of a sequence of acts.
func SequenceKey(seq []Act) string {
	keys := make([]string, len(seq))
	for i, a := range seq {
		keys[i] = a.Key()
	}
	return strings.Join(keys, ";")
}

// SequenceID is a short stable identifier for a sequence of acts.
func SequenceID(seq []Act) string {
	sum := sha256.Sum256([]byte(SequenceKey(seq)))
	return "play-" + hex.EncodeToString(sum[:6])
}

// Strategy is a set of plays for one player.
//
// IsInnocent and SatisfiesPropagation are diagnostics computed when the strategy
// is built; they are not enforced by construction. Diagnostics says which
// sub-check failed and where.
type Strategy struct {
	ID                   string              `json:"id"`
	DesignID             string              `json:"design_id,omitempty"`
	Player               Polarity            `json:"player"`
	Plays                []Play              `json:"plays"`
	PlayCount            int                 `json:"play_count"`
	IsInnocent           bool                `json:"is_innocent"`
	SatisfiesPropagation bool                `json:"satisfies_propagation"`
	IsSmallest           bool                `json:"is_smallest"`
	Iterations           int                 `json:"iterations"`
	Diagnostics          StrategyDiagnostics `json:"diagnostics"`
}

// Names of the strategy sub-checks.
const (
	CheckDeterminism   = "determinism"
	CheckViewStability = "view_stability"
	CheckSaturation    = "saturation"
	CheckPropagation   = "propagation"
)

// StrategyDiagnostics breaks innocence into its sub-checks and lists the
// violations found by each side.
type StrategyDiagnostics struct {
	Deterministic bool     `json:"deterministic"`
	ViewStable    bool     `json:"view_stable"`
	Saturated     bool     `json:"saturated"`
	Innocence     []string `json:"innocence_violations,omitempty"`
	Propagation   []string `json:"propagation_violations,omitempty"`
}

// Failed lists the sub-checks that do not hold.
func (d StrategyDiagnostics) Failed() []string {
	var out []string
	if !d.Deterministic {
		out = append(out, CheckDeterminism)
	}
	if !d.ViewStable {
		out = append(out, CheckViewStability)
	}
	if !d.Saturated {
		out = append(out, CheckSaturation)
	}
	if len(d.Propagation) > 0 {
		out = append(out, CheckPropagation)
	}
	return out
}

// PlayKeys returns the set of play keys of the strategy.
func (s *Strategy) PlayKeys() map[string]bool {
	keys := make(map[string]bool, len(s.Plays))
	for _, p := range s.Plays {
		keys[SequenceKey(p.Sequence)] = true
	}
	return keys
}

// Equal reports whether two strategies hold the same plays for the same player.
func (s *Strategy) Equal(other *Strategy) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Player != other.Player || len(s.Plays) != len(other.Plays) {
		return false
	}
	keys := s.PlayKeys()
	for k := range other.PlayKeys() {
		if !keys[k] {
			return false
		}
	}
	return true
}
