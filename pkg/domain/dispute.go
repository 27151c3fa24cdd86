package domain

// Dispute is one maximal interaction trace between a design and an orthogonal counter-design.
// Disputes are derived data and are not persisted authoritatively.
type Dispute struct {
	ID              string   `json:"id"`
	DesignID        string   `json:"design_id"`
	CounterDesignID string   `json:"counter_design_id"`
	Pairs           []Pair   `json:"pairs"`
	Length          int      `json:"length"`
	Status          Status   `json:"status"`
	DaimonHints     []string `json:"daimon_hints,omitempty"`
	Terminal        *Act     `json:"terminal,omitempty"`
}

// DisputeSet is Disp(D) over an ordered list of counter-designs.
type DisputeSet struct {
	DesignID string    `json:"design_id"`
	Disputes []Dispute `json:"disputes"`
	Count    int       `json:"count"`

	// Divergent lists the counter-designs that were not orthogonal.
	Divergent []string `json:"divergent,omitempty"`
	// Skipped lists candidates that are not counter-designs of D.
	Skipped []string `json:"skipped,omitempty"`
}
