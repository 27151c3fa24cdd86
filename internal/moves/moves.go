// Package moves compiles dialogue moves into acts on a pair of designs.
//
// A dialogue is played on two designs sharing one locus tree: the proponent's
// positive design and the opponent's negative design. A proper move appends the
// mover's act to the mover's design and a receipt, the same locus and
// ramification with a wildcard expression, to the other design, so both
// chronicles open the same loci. Concessions and retractions are daimons and
// have no receipt.
package moves

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/ludics/internal/chronicle"
	"github.com/aretw0/ludics/internal/interaction"
	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

// Kind names a dialogue move.
type Kind string

const (
	Assert  Kind = "ASSERT"
	Why     Kind = "WHY"
	Grounds Kind = "GROUNDS"
	Concede Kind = "CONCEDE"
	Retract Kind = "RETRACT"
	Close   Kind = "CLOSE"
)

// Kinds lists every move kind.
var Kinds = []Kind{Assert, Why, Grounds, Concede, Retract, Close}

// ParseKind accepts a kind in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(Kinds, k) {
		return "", fmt.Errorf("%w: unknown move kind %q", domain.ErrIllegalMove, s)
	}
	return k, nil
}

// Meta keys written on compiled acts.
const (
	MetaMove    = "move"
	MetaReceipt = "receipt"
)

// Move is one dialogue move. Actor defaults by kind: P asserts and grounds,
// O asks why and concedes, P retracts.
type Move struct {
	Kind         Kind            `json:"kind" yaml:"kind" mapstructure:"kind"`
	Actor        domain.Polarity `json:"actor,omitempty" yaml:"actor,omitempty" mapstructure:"actor"`
	Locus        string          `json:"locus,omitempty" yaml:"locus,omitempty" mapstructure:"locus"`
	Target       string          `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	Expression   string          `json:"expression,omitempty" yaml:"expression,omitempty" mapstructure:"expression"`
	Ramification []string        `json:"ramification,omitempty" yaml:"ramification,omitempty" mapstructure:"ramification"`
}

func (m Move) actor() domain.Polarity {
	if m.Actor != "" {
		return m.Actor
	}
	switch m.Kind {
	case Why, Concede:
		return domain.PolarityO
	}
	return domain.PolarityP
}

// Step records what one move did.
type Step struct {
	Move Move         `json:"move"`
	Acts []domain.Act `json:"acts,omitempty"`

	// Interaction is the check a CLOSE ran.
	Interaction *domain.Interaction `json:"interaction,omitempty"`
}

// Dialogue is the state of a two-design dialogue.
type Dialogue struct {
	ID       string         `json:"id"`
	Positive *domain.Design `json:"positive"`
	Negative *domain.Design `json:"negative"`
	Closed   bool           `json:"closed"`
	ClosedAt string         `json:"closed_at,omitempty"`
	Steps    []Step         `json:"steps"`
}

// PositiveID and NegativeID name the two designs of a dialogue.
func PositiveID(dialogueID string) string { return dialogueID + ":P" }

func NegativeID(dialogueID string) string { return dialogueID + ":O" }

// NewDialogue creates the two empty designs of a dialogue.
func NewDialogue(id string) *Dialogue {
	return &Dialogue{
		ID:       id,
		Positive: domain.NewDesign(PositiveID(id), id, "proponent", domain.PolarityP),
		Negative: domain.NewDesign(NegativeID(id), id, "opponent", domain.PolarityO),
		Steps:    []Step{},
	}
}

func (dl *Dialogue) design(p domain.Polarity) *domain.Design {
	if p == domain.PolarityO {
		return dl.Negative
	}
	return dl.Positive
}

func (dl *Dialogue) set(d *domain.Design) {
	if d.Role() == domain.PolarityO {
		dl.Negative = d
	} else {
		dl.Positive = d
	}
}

// planned is an act bound for one of the two designs.
type planned struct {
	polarity domain.Polarity
	act      domain.Act
}

// plan turns a move into the acts it appends. It checks every act against the
// chronicle rules on scratch copies, so a plan either applies whole or not at all.
// CLOSE plans no act and reports the interaction it checked.
func plan(dl *Dialogue, m Move, opts interaction.Options) ([]planned, *domain.Interaction, error) {
	if dl.Closed {
		return nil, nil, fmt.Errorf("%w: closed at %s", domain.ErrDialogueClosed, dl.ClosedAt)
	}
	actor := m.actor()
	if !actor.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown actor %q", domain.ErrIllegalMove, m.Actor)
	}
	own := dl.design(actor)

	var acts []planned
	switch m.Kind {
	case Assert, Why, Grounds:
		path, err := properLocus(own, m)
		if err != nil {
			return nil, nil, err
		}
		ram := m.Ramification
		if ram == nil {
			ram = []string{"1"}
		}
		act := domain.Act{
			Kind:             domain.KindProper,
			Polarity:         actor,
			LocusPath:        path,
			Ramification:     slices.Clone(ram),
			Expression:       m.Expression,
			JustifiedByLocus: justifier(m),
			Meta:             map[string]string{MetaMove: string(m.Kind)},
		}
		receipt := act.Clone()
		receipt.Polarity = actor.Opposite()
		receipt.Expression = ""
		receipt.Meta[MetaReceipt] = "true"
		acts = []planned{{actor, act}, {actor.Opposite(), receipt}}

	case Concede, Retract:
		path, err := daimonLocus(own, m)
		if err != nil {
			return nil, nil, err
		}
		acts = []planned{{actor, domain.Act{
			Kind:      domain.KindDaimon,
			Polarity:  actor,
			LocusPath: path,
			Meta:      map[string]string{MetaMove: string(m.Kind)},
		}}}

	case Close:
		res, err := interaction.Step(dl.Positive, dl.Negative, opts)
		if err != nil {
			return nil, nil, err
		}
		target := locus.Normalize(m.Target)
		if m.Target == "" && len(res.DaimonHints) > 0 {
			target = res.DaimonHints[0]
		}
		if !slices.Contains(res.DaimonHints, target) {
			return nil, res, fmt.Errorf("%w: no daimon closes %s (status %s)", domain.ErrIllegalMove, target, res.Status)
		}
		return nil, res, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown move kind %q", domain.ErrIllegalMove, m.Kind)
	}

	scratch := map[domain.Polarity]*domain.Design{}
	for _, p := range acts {
		d, ok := scratch[p.polarity]
		if !ok {
			d = dl.design(p.polarity)
		}
		next, err := chronicle.AppendAct(d, p.act)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", domain.ErrIllegalMove, err)
		}
		scratch[p.polarity] = next
	}
	return acts, nil, nil
}

func justifier(m Move) string {
	if m.Kind == Assert || m.Target == "" {
		return ""
	}
	return locus.Normalize(m.Target)
}

// properLocus picks where a proper move lands.
func properLocus(own *domain.Design, m Move) (string, error) {
	if m.Locus != "" {
		return locus.Normalize(m.Locus), nil
	}
	free := chronicle.FreeLoci(own)
	if m.Kind == Assert {
		if len(own.Acts) == 0 {
			return own.Root(), nil
		}
		if len(free) == 0 {
			return "", fmt.Errorf("%w: %s has no open locus to assert at", domain.ErrIllegalMove, own.ID)
		}
		return free[0], nil
	}
	if m.Target == "" {
		return "", fmt.Errorf("%w: %s needs a target", domain.ErrIllegalMove, m.Kind)
	}
	return firstFreeChild(own, free, locus.Normalize(m.Target))
}

// daimonLocus picks where a concession or retraction lands.
func daimonLocus(own *domain.Design, m Move) (string, error) {
	if m.Locus != "" {
		return locus.Normalize(m.Locus), nil
	}
	free := chronicle.FreeLoci(own)
	target := locus.Normalize(m.Target)
	if m.Kind == Concede {
		if m.Target == "" {
			if len(free) == 0 {
				return "", fmt.Errorf("%w: %s has nothing left to concede", domain.ErrIllegalMove, own.ID)
			}
			return free[0], nil
		}
		return firstFreeChild(own, free, target)
	}
	for _, p := range free {
		if locus.IsPrefix(target, p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: nothing open under %s to retract", domain.ErrIllegalMove, target)
}

func firstFreeChild(own *domain.Design, free []string, target string) (string, error) {
	var children []string
	for _, p := range free {
		if locus.Parent(p) == target {
			children = append(children, p)
		}
	}
	if len(children) == 0 {
		return "", fmt.Errorf("%w: %s has no open locus under %s", domain.ErrIllegalMove, own.ID, target)
	}
	slices.SortFunc(children, locus.Compare)
	return children[0], nil
}

// Compile plays moves on a fresh dialogue in memory.
func Compile(dialogueID string, moves []Move, opts interaction.Options) (*Dialogue, error) {
	dl := NewDialogue(dialogueID)
	for i, m := range moves {
		if _, err := dl.Apply(m, opts); err != nil {
			return dl, fmt.Errorf("move %d (%s): %w", i, m.Kind, err)
		}
	}
	return dl, nil
}

// Apply plays one move on the in-memory designs.
func (dl *Dialogue) Apply(m Move, opts interaction.Options) (*Step, error) {
	acts, res, err := plan(dl, m, opts)
	if err != nil {
		return nil, err
	}
	step := Step{Move: m, Interaction: res}
	for _, p := range acts {
		next, err := chronicle.AppendAct(dl.design(p.polarity), p.act)
		if err != nil {
			return nil, err
		}
		dl.set(next)
		last, _ := next.Last()
		step.Acts = append(step.Acts, last)
	}
	dl.record(step)
	return &step, nil
}

func (dl *Dialogue) record(step Step) {
	if step.Move.Kind == Close {
		dl.Closed = true
		dl.ClosedAt = locus.Normalize(step.Move.Target)
		if step.Move.Target == "" && step.Interaction != nil && len(step.Interaction.DaimonHints) > 0 {
			dl.ClosedAt = step.Interaction.DaimonHints[0]
		}
	}
	dl.Steps = append(dl.Steps, step)
}
