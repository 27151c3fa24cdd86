package domain

// Status is the terminal classification of an interaction or dispute.
type Status string

const (
	// StatusConvergent: the interaction ended on a daimon.
	StatusConvergent Status = "CONVERGENT"
	// StatusDivergent: two paired acts were incompatible.
	StatusDivergent Status = "DIVERGENT"
	// StatusOngoing: the pair budget ran out while a pairing was still possible.
	StatusOngoing Status = "ONGOING"
	// StatusStuck: no legal continuation and no daimon.
	StatusStuck Status = "STUCK"
)

// Pair is one step of an interaction: the P act and the O act met at a shared locus.
type Pair struct {
	Locus string `json:"locus"`
	P     Act    `json:"p"`
	O     Act    `json:"o"`
}

// HasDaimon reports whether either side of the pair is a daimon.
func (p Pair) HasDaimon() bool {
	return p.P.IsDaimon() || p.O.IsDaimon()
}

// Divergence locates the pairing that broke orthogonality.
type Divergence struct {
	Locus  string `json:"locus"`
	Reason string `json:"reason"`
	P      Act    `json:"p"`
	O      Act    `json:"o"`
}

// Interaction is the result of stepping a positive design against a negative one.
type Interaction struct {
	Phase          string   `json:"phase,omitempty"`
	PositiveID     string   `json:"positive_id"`
	NegativeID     string   `json:"negative_id"`
	Pairs          []Pair   `json:"pairs"`
	Status         Status   `json:"status"`
	DaimonHints    []string `json:"daimon_hints"`
	BudgetExceeded bool     `json:"budget_exceeded,omitempty"`

	// Terminal holds a daimon that ended the interaction without a partner.
	Terminal *Act `json:"terminal,omitempty"`

	Divergence *Divergence `json:"divergence,omitempty"`

	// StuckPlayer is the player who could not go on (the daimon player on convergence).
	StuckPlayer Polarity `json:"stuck_player,omitempty"`
	// Winner is the other player, when there is one.
	Winner Polarity `json:"winner,omitempty"`
}

// Length returns the number of pairs in the trace.
func (i *Interaction) Length() int {
	return len(i.Pairs)
}
