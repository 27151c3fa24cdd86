package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/internal/chronicle"
	"github.com/aretw0/ludics/internal/dispute"
	"github.com/aretw0/ludics/internal/interaction"
	"github.com/aretw0/ludics/internal/presentation/graph"
	"github.com/aretw0/ludics/pkg/domain"
)

func design(t *testing.T, id string, pol domain.Polarity, acts ...domain.Act) *domain.Design {
	t.Helper()
	d := domain.NewDesign(id, "dlg", id, pol)
	for _, a := range acts {
		a.Polarity = pol
		if a.Kind == "" {
			a.Kind = domain.KindProper
		}
		var err error
		d, err = chronicle.AppendAct(d, a)
		require.NoError(t, err)
	}
	return d
}

func TestDesignMermaid(t *testing.T) {
	d := design(t, "prop", domain.PolarityP,
		domain.Act{LocusPath: "0", Expression: `say "yes"`, Ramification: []string{"1", "2"}},
		domain.Act{LocusPath: "0.1", Kind: domain.KindDaimon},
	)
	got := graph.DesignMermaid(d, nil)

	for _, want := range []string{
		"graph TD",
		`L0(("0 <br/> say 'yes'"))`,
		`L0_1{{"0.1 †"}}`,
		`L0_2(["0.2"])`,
		"L0 --> L0_1",
		"L0 --> L0_2",
		"class L0_2 open;",
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "Overlay")
	assert.Less(t, strings.Index(got, "L0_1{{"), strings.Index(got, "L0_2(["), "canonical order")
}

func TestDesignMermaid_Overlay(t *testing.T) {
	p := design(t, "prop", domain.PolarityP,
		domain.Act{LocusPath: "0", Ramification: []string{"1"}},
		domain.Act{LocusPath: "0.1", Kind: domain.KindDaimon},
	)
	o := design(t, "opp", domain.PolarityO,
		domain.Act{LocusPath: "0", Ramification: []string{"1"}},
	)
	in, err := interaction.Step(p, o, interaction.Options{})
	require.NoError(t, err)
	require.Equal(t, domain.StatusConvergent, in.Status)

	got := graph.DesignMermaid(p, graph.OverlayFor(in))
	assert.Contains(t, got, "class L0 visited;")
	assert.Contains(t, got, "class L0_1 current;")
	assert.Nil(t, graph.OverlayFor(nil))
}

func TestDisputeMermaid(t *testing.T) {
	p := design(t, "prop", domain.PolarityP,
		domain.Act{LocusPath: "0", Expression: "claim", Ramification: []string{"1"}},
	)
	ok := design(t, "ok", domain.PolarityO,
		domain.Act{LocusPath: "0", Ramification: []string{"1"}},
		domain.Act{LocusPath: "0.1", Kind: domain.KindDaimon},
	)
	bad := design(t, "bad", domain.PolarityO,
		domain.Act{LocusPath: "0", Expression: "other", Ramification: []string{"1"}},
	)
	set, err := dispute.Compute(p, []*domain.Design{ok, bad}, interaction.Options{})
	require.NoError(t, err)

	got := graph.DisputeMermaid(set)
	assert.Contains(t, got, "sequenceDiagram")
	assert.Contains(t, got, "P->>O: 0 claim")
	assert.Contains(t, got, "O-->>P: 0 *")
	assert.Contains(t, got, "O-xP: 0.1 †")
	assert.Contains(t, got, "bad diverges")
}
