// Package behaviour computes orthogonal sets and biorthogonal closures of designs
// over a finite universe, and the incarnation of plays and designs.
package behaviour

import (
	"fmt"

	"github.com/aretw0/ludics/internal/dispute"
	"github.com/aretw0/ludics/internal/interaction"
	"github.com/aretw0/ludics/internal/strategy"
	"github.com/aretw0/ludics/pkg/domain"
)

// Options bounds the closure computation.
type Options struct {
	Interaction interaction.Options
	// MaxIterations caps the S⊥⊥ rounds.
	MaxIterations int
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = strategy.DefaultMaxIterations
	}
	return o
}

// Closure is the outcome of Biorthogonal. Designs are named by ID, in input
// order then universe order.
//
// Complete is false when MaxIterations stopped the closure before a round added
// nothing; Members is then a lower bound of S⊥⊥.
type Closure struct {
	Polarity    domain.Polarity `json:"polarity"`
	Input       []string        `json:"input"`
	Orthogonal  []string        `json:"orthogonal"`
	Members     []string        `json:"members"`
	Added       []string        `json:"added"`
	Iterations  int             `json:"iterations"`
	Complete    bool            `json:"complete"`
	IsBehaviour bool            `json:"is_behaviour"`
}

// checker memoizes orthogonality of design pairs by ID.
type checker struct {
	opts  interaction.Options
	cache map[[2]string]bool
}

func newChecker(opts interaction.Options) *checker {
	return &checker{opts: opts, cache: map[[2]string]bool{}}
}

func (c *checker) orthogonal(a, b *domain.Design) (bool, error) {
	if a.Role() == b.Role() {
		return false, nil
	}
	key := [2]string{a.ID, b.ID}
	if a.ID > b.ID {
		key = [2]string{b.ID, a.ID}
	}
	cacheable := a.ID != "" && b.ID != ""
	if v, ok := c.cache[key]; ok && cacheable {
		return v, nil
	}
	ok, _, err := dispute.Orthogonal(a, b, c.opts)
	if err != nil {
		return false, fmt.Errorf("orthogonality of %s and %s: %w", a.ID, b.ID, err)
	}
	if cacheable {
		c.cache[key] = ok
	}
	return ok, nil
}

// set returns the candidates orthogonal to every design of s.
func (c *checker) set(s, candidates []*domain.Design) ([]*domain.Design, error) {
	var out []*domain.Design
	for _, cand := range candidates {
		if cand == nil {
			continue
		}
		all := true
		for _, d := range s {
			ok, err := c.orthogonal(cand, d)
			if err != nil {
				return nil, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			out = append(out, cand)
		}
	}
	return out, nil
}

// Orthogonal returns S⊥: the candidates orthogonal to every design of set, in
// candidate order. A candidate sharing a polarity with a member of set is never
// orthogonal to it. With an empty set every candidate qualifies.
func Orthogonal(set, candidates []*domain.Design, opts Options) ([]*domain.Design, error) {
	return newChecker(opts.Interaction).set(compact(set), candidates)
}

// Biorthogonal computes S⊥⊥ within universe.
//
// S⊥ ranges over the universe designs of the opposite polarity and S⊥⊥ over those
// of the polarity of set. Designs of set missing from universe still belong to
// the closure. Each round recomputes S⊥ from the grown set until a round adds
// nothing.
func Biorthogonal(set, universe []*domain.Design, opts Options) (*Closure, error) {
	opts = opts.withDefaults()
	set = compact(set)
	role, err := roleOf(set)
	if err != nil {
		return nil, err
	}

	var same, opposite []*domain.Design
	for _, d := range universe {
		switch {
		case d == nil:
		case d.Role() == role:
			same = append(same, d)
		default:
			opposite = append(opposite, d)
		}
	}

	c := newChecker(opts.Interaction)
	res := &Closure{
		Polarity:   role,
		Input:      ids(set),
		Orthogonal: []string{},
		Added:      []string{},
	}
	current := append([]*domain.Design(nil), set...)
	member := map[string]bool{}
	for _, d := range set {
		member[d.ID] = true
	}

	for res.Iterations < opts.MaxIterations {
		res.Iterations++
		orth, err := c.set(current, opposite)
		if err != nil {
			return nil, err
		}
		res.Orthogonal = ids(orth)
		bi, err := c.set(orth, same)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, d := range bi {
			if member[d.ID] {
				continue
			}
			member[d.ID] = true
			current = append(current, d)
			res.Added = append(res.Added, d.ID)
			added++
		}
		if added == 0 {
			res.Complete = true
			break
		}
	}
	res.Members = ids(current)
	res.IsBehaviour = res.Complete && len(res.Added) == 0
	return res, nil
}

// IsBehaviour reports whether set equals its biorthogonal within universe.
func IsBehaviour(set, universe []*domain.Design, opts Options) (bool, *Closure, error) {
	c, err := Biorthogonal(set, universe, opts)
	if err != nil {
		return false, nil, err
	}
	return c.IsBehaviour, c, nil
}

// Symmetry holds orthogonality checked in both argument orders.
type Symmetry struct {
	Forward   bool `json:"forward"`
	Backward  bool `json:"backward"`
	Symmetric bool `json:"symmetric"`
}

// CheckSymmetry runs a ⊥ b and b ⊥ a without memoization. A custom
// compatibility function that looks at argument order can break symmetry.
func CheckSymmetry(a, b *domain.Design, opts Options) (Symmetry, error) {
	fwd, _, err := dispute.Orthogonal(a, b, opts.Interaction)
	if err != nil {
		return Symmetry{}, err
	}
	bwd, _, err := dispute.Orthogonal(b, a, opts.Interaction)
	if err != nil {
		return Symmetry{}, err
	}
	return Symmetry{Forward: fwd, Backward: bwd, Symmetric: fwd == bwd}, nil
}

func roleOf(set []*domain.Design) (domain.Polarity, error) {
	if len(set) == 0 {
		return "", fmt.Errorf("%w: behaviour of an empty design set", domain.ErrNoSuchDesign)
	}
	role := set[0].Role()
	for _, d := range set[1:] {
		if d.Role() != role {
			return "", fmt.Errorf("%w: %q is %s but %q is %s", domain.ErrPolarityMismatch, set[0].ID, role, d.ID, d.Role())
		}
	}
	return role, nil
}

func compact(ds []*domain.Design) []*domain.Design {
	out := make([]*domain.Design, 0, len(ds))
	for _, d := range ds {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func ids(ds []*domain.Design) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
