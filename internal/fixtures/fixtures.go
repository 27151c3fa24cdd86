// Package fixtures loads designs and dialogue moves from YAML files.
//
// A fixture file looks like:
//
//	dialogue: budget
//	designs:
//	  - id: prop
//	    participant: alice
//	    polarity: P
//	    acts:
//	      - {locus: "0", expression: claim, ramification: ["1"]}
//	      - {locus: "0.1.1", daimon: true}
//	moves:
//	  - {kind: assert, expression: claim}
//	  - {kind: why, target: "0"}
package fixtures

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/ludics/internal/chronicle"
	"github.com/aretw0/ludics/internal/moves"
	"github.com/aretw0/ludics/pkg/domain"
)

// ActSpec is one act as written in a fixture.
type ActSpec struct {
	Locus        string            `yaml:"locus"`
	Expression   string            `yaml:"expression,omitempty"`
	Ramification []string          `yaml:"ramification,omitempty"`
	Daimon       bool              `yaml:"daimon,omitempty"`
	Meta         map[string]string `yaml:"meta,omitempty"`
}

// DesignSpec is one design as written in a fixture.
type DesignSpec struct {
	ID          string          `yaml:"id"`
	Participant string          `yaml:"participant"`
	Polarity    domain.Polarity `yaml:"polarity"`
	Root        string          `yaml:"root,omitempty"`
	Acts        []ActSpec       `yaml:"acts"`
}

type file struct {
	Dialogue string       `yaml:"dialogue"`
	Designs  []DesignSpec `yaml:"designs"`
	Moves    []moves.Move `yaml:"moves"`
}

// Fixture is a parsed fixture file. Designs are validated chronicles.
type Fixture struct {
	Dialogue string
	Designs  []*domain.Design
	Moves    []moves.Move
}

// Load reads and parses the fixture at path.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a fixture and builds its designs act by act.
func Parse(data []byte) (*Fixture, error) {
	var raw file
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if raw.Dialogue == "" {
		raw.Dialogue = "fixture"
	}

	out := &Fixture{Dialogue: raw.Dialogue}
	seen := map[string]bool{}
	for _, ds := range raw.Designs {
		if ds.ID == "" {
			return nil, fmt.Errorf("design without id")
		}
		if seen[ds.ID] {
			return nil, fmt.Errorf("%w: %s", domain.ErrDesignExists, ds.ID)
		}
		seen[ds.ID] = true
		d, err := build(raw.Dialogue, ds)
		if err != nil {
			return nil, err
		}
		out.Designs = append(out.Designs, d)
	}

	for i, m := range raw.Moves {
		k, err := moves.ParseKind(string(m.Kind))
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		m.Kind = k
		out.Moves = append(out.Moves, m)
	}
	return out, nil
}

func build(dialogueID string, ds DesignSpec) (*domain.Design, error) {
	if !ds.Polarity.Valid() {
		return nil, fmt.Errorf("design %s: polarity must be P or O, got %q", ds.ID, ds.Polarity)
	}
	d := domain.NewDesign(ds.ID, dialogueID, ds.Participant, ds.Polarity)
	if ds.Root != "" {
		d.RootPath = ds.Root
	}
	for i, a := range ds.Acts {
		act := domain.Act{
			Kind:         domain.KindProper,
			Polarity:     ds.Polarity,
			LocusPath:    a.Locus,
			Expression:   a.Expression,
			Ramification: a.Ramification,
			Meta:         a.Meta,
		}
		if a.Daimon {
			act.Kind = domain.KindDaimon
		}
		next, err := chronicle.AppendAct(d, act)
		if err != nil {
			return nil, fmt.Errorf("design %s act %d: %w", ds.ID, i+1, err)
		}
		d = next
	}
	return d, nil
}

// Design returns the design named id.
func (f *Fixture) Design(id string) (*domain.Design, error) {
	for _, d := range f.Designs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNoSuchDesign, id)
}

// Counters returns the designs of opposite polarity to id, or the ones named
// in ids when given.
func (f *Fixture) Counters(id string, ids ...string) ([]*domain.Design, error) {
	d, err := f.Design(id)
	if err != nil {
		return nil, err
	}
	var out []*domain.Design
	if len(ids) > 0 {
		for _, cid := range ids {
			c, err := f.Design(cid)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}
	for _, c := range f.Designs {
		if c.ID != d.ID && c.Role() == d.Role().Opposite() {
			out = append(out, c)
		}
	}
	return out, nil
}

// IDs lists the design ids in file order.
func (f *Fixture) IDs() []string {
	ids := make([]string, 0, len(f.Designs))
	for _, d := range f.Designs {
		ids = append(ids, d.ID)
	}
	return ids
}
