package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/ports"
)

// Mask replaces every redacted substring.
const Mask = "***"

type piiMiddleware struct {
	passthrough
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks, before anything is written,
// every substring of act expressions and meta values matching the patterns.
// The caller's design is never modified.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.Store) ports.Store {
		return &piiMiddleware{passthrough: passthrough{next}, patterns: patterns}
	}
}

func (m *piiMiddleware) CreateDesign(ctx context.Context, d *domain.Design) error {
	return m.Store.CreateDesign(ctx, m.mask(d))
}

func (m *piiMiddleware) SaveDesign(ctx context.Context, d *domain.Design) error {
	return m.Store.SaveDesign(ctx, m.mask(d))
}

func (m *piiMiddleware) mask(d *domain.Design) *domain.Design {
	cloned := d.Clone()
	for i := range cloned.Acts {
		a := &cloned.Acts[i]
		a.Expression = m.maskString(a.Expression)
		for k, v := range a.Meta {
			a.Meta[k] = m.maskString(v)
		}
	}
	return cloned
}

func (m *piiMiddleware) maskString(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
