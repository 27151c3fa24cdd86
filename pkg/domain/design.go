package domain

import (
	"sort"
	"time"
)

// DefaultSemantics tags the rule-set designs are validated against.
const DefaultSemantics = "ludics-v1"

// Design is one participant's owned chronicle of acts for a dialogue.
type Design struct {
	ID             string   `json:"id" yaml:"id"`
	DeliberationID string   `json:"deliberation_id" yaml:"deliberation_id"`
	ParticipantID  string   `json:"participant_id" yaml:"participant_id"`
	Polarity       Polarity `json:"polarity" yaml:"polarity"`
	RootLocusID    string   `json:"root_locus_id,omitempty" yaml:"root_locus_id,omitempty"`
	RootPath       string   `json:"root_path" yaml:"root_path"`

	// Acts are kept ordered by OrderInDesign.
	Acts      []Act  `json:"acts" yaml:"acts"`
	HasDaimon bool   `json:"has_daimon" yaml:"has_daimon"`
	Semantics string `json:"semantics" yaml:"semantics"`
	Version   int    `json:"version" yaml:"version"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewDesign creates an empty design rooted at "0" for one participant.
func NewDesign(id, deliberationID, participantID string, polarity Polarity) *Design {
	return &Design{
		ID:             id,
		DeliberationID: deliberationID,
		ParticipantID:  participantID,
		Polarity:       polarity,
		RootPath:       "0",
		Acts:           []Act{},
		Semantics:      DefaultSemantics,
	}
}

// Role returns the design's polarity, falling back to its first act when unset.
func (d *Design) Role() Polarity {
	if d.Polarity != "" {
		return d.Polarity
	}
	for _, a := range d.Acts {
		return a.Polarity
	}
	return PolarityP
}

// Root returns the root locus path, defaulting to "0".
func (d *Design) Root() string {
	if d.RootPath == "" {
		return "0"
	}
	return d.RootPath
}

// Last returns the last act of the chronicle.
func (d *Design) Last() (Act, bool) {
	if len(d.Acts) == 0 {
		return Act{}, false
	}
	return d.Acts[len(d.Acts)-1], true
}

// ActAt returns the act played at path, if any.
func (d *Design) ActAt(path string) (Act, bool) {
	for _, a := range d.Acts {
		if a.LocusPath == path {
			return a, true
		}
	}
	return Act{}, false
}

// SortActs orders the acts by OrderInDesign.
func (d *Design) SortActs() {
	sort.SliceStable(d.Acts, func(i, j int) bool {
		return d.Acts[i].OrderInDesign < d.Acts[j].OrderInDesign
	})
}

// Clone returns a deep copy of the design.
func (d *Design) Clone() *Design {
	if d == nil {
		return nil
	}
	c := *d
	c.Acts = CloneActs(d.Acts)
	if c.Acts == nil {
		c.Acts = []Act{}
	}
	return &c
}

// CloneResult reports the effect of a subtree clone.
type CloneResult struct {
	ClonedActs   int      `json:"cloned_acts"`
	CreatedLoci  int      `json:"created_loci"`
	Destinations []string `json:"destinations"`
}
