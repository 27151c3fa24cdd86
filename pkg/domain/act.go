package domain

import (
	"slices"
	"strings"
)

// ActKind distinguishes content moves from the terminal daimon.
type ActKind string

const (
	KindProper ActKind = "PROPER"
	KindDaimon ActKind = "DAIMON"
)

// Valid reports whether k is one of the known kinds.
func (k ActKind) Valid() bool {
	switch k {
	case KindProper, KindDaimon:
		return true
	}
	return false
}

// Polarity tells whose turn produced an act.
type Polarity string

const (
	PolarityP Polarity = "P" // Proponent
	PolarityO Polarity = "O" // Opponent
)

// Valid reports whether p is P or O.
func (p Polarity) Valid() bool {
	switch p {
	case PolarityP, PolarityO:
		return true
	}
	return false
}

// Opposite returns the other player.
func (p Polarity) Opposite() Polarity {
	switch p {
	case PolarityP:
		return PolarityO
	case PolarityO:
		return PolarityP
	}
	return p
}

// Wildcard is the expression that is compatible with any response.
const Wildcard = "*"

// Act is one polarized, located move owned by exactly one Design.
type Act struct {
	ID       string   `json:"id" yaml:"id"`
	DesignID string   `json:"design_id" yaml:"design_id"`
	Kind     ActKind  `json:"kind" yaml:"kind"`
	Polarity Polarity `json:"polarity" yaml:"polarity"`

	// LocusPath is the address the act is played at.
	LocusPath string `json:"locus_path" yaml:"locus_path"`

	// Ramification lists the sub-locus names opened by this act. Empty for a daimon.
	Ramification []string `json:"ramification" yaml:"ramification"`

	// Expression is the free-form payload (a claim, a question key, ...).
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`

	OrderInDesign int `json:"order_in_design" yaml:"order_in_design"`

	// JustifiedByLocus is the locus of the act this one answers, if any.
	JustifiedByLocus string `json:"justified_by_locus,omitempty" yaml:"justified_by_locus,omitempty"`

	Meta map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// IsDaimon reports whether the act is the terminal daimon.
func (a Act) IsDaimon() bool {
	return a.Kind == KindDaimon
}

// IsWildcard reports whether the act's expression accepts any response.
func (a Act) IsWildcard() bool {
	return a.Expression == "" || a.Expression == Wildcard
}

// Key identifies an act by its behavior, ignoring storage identity and order.
func (a Act) Key() string {
	var b strings.Builder
	b.WriteString(string(a.Polarity))
	b.WriteByte('|')
	b.WriteString(string(a.Kind))
	b.WriteByte('|')
	b.WriteString(a.LocusPath)
	b.WriteByte('|')
	ram := slices.Clone(a.Ramification)
	slices.Sort(ram)
	b.WriteString(strings.Join(ram, ","))
	b.WriteByte('|')
	b.WriteString(a.Expression)
	return b.String()
}

// Clone returns a deep copy of the act.
func (a Act) Clone() Act {
	c := a
	c.Ramification = slices.Clone(a.Ramification)
	if a.Meta != nil {
		c.Meta = make(map[string]string, len(a.Meta))
		for k, v := range a.Meta {
			c.Meta[k] = v
		}
	}
	return c
}

// CloneActs deep-copies a slice of acts.
func CloneActs(acts []Act) []Act {
	if acts == nil {
		return nil
	}
	out := make([]Act, len(acts))
	for i, a := range acts {
		out[i] = a.Clone()
	}
	return out
}
