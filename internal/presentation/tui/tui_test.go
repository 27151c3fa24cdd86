package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/internal/behaviour"
	"github.com/aretw0/ludics/internal/correspondence"
	"github.com/aretw0/ludics/internal/moves"
	"github.com/aretw0/ludics/pkg/domain"
)

func TestWrite_NotTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "# Title\n"))
	assert.Equal(t, "# Title\n", buf.String())
	assert.False(t, IsTerminal(&buf))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "v1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
	assert.Contains(t, buf.String(), "|_|")
}

func TestNewRenderer(t *testing.T) {
	out, err := NewRenderer()("**bold**")
	require.NoError(t, err)
	assert.Contains(t, out, "bold")
}

func TestInteractionReport(t *testing.T) {
	in := &domain.Interaction{
		PositiveID: "prop",
		NegativeID: "opp",
		Status:     domain.StatusConvergent,
		Pairs: []domain.Pair{{
			Locus: "0",
			P:     domain.Act{LocusPath: "0", Polarity: domain.PolarityP, Kind: domain.KindProper, Expression: "claim"},
			O:     domain.Act{LocusPath: "0", Polarity: domain.PolarityO, Kind: domain.KindDaimon},
		}},
		DaimonHints: []string{"0"},
		StuckPlayer: domain.PolarityO,
		Winner:      domain.PolarityP,
	}
	got := InteractionReport(in)
	assert.Contains(t, got, "# Interaction prop ⟂ opp")
	assert.Contains(t, got, "**Status:** CONVERGENT")
	assert.Contains(t, got, "- winner: P")
	assert.Contains(t, got, "| 1 | `0` | `0` P \"claim\" | `0` † |")
}

func TestDisputeReport(t *testing.T) {
	set := &domain.DisputeSet{
		DesignID:  "prop",
		Count:     1,
		Disputes:  []domain.Dispute{{CounterDesignID: "opp", Status: domain.StatusStuck, Length: 0}},
		Divergent: []string{"bad"},
		Skipped:   []string{"self"},
	}
	got := DisputeReport(set)
	assert.Contains(t, got, "# Disp(prop)")
	assert.Contains(t, got, "## opp")
	assert.Contains(t, got, "Divergent: bad")
	assert.Contains(t, got, "Skipped: self")
}

func TestStrategyAndCheckReports(t *testing.T) {
	seq := []domain.Act{{LocusPath: "0", Polarity: domain.PolarityO, Kind: domain.KindProper}}
	s := &domain.Strategy{ID: "strategy/prop", Player: domain.PolarityP, Plays: []domain.Play{domain.NewPlay(seq)}, PlayCount: 1, IsInnocent: true}
	got := StrategyReport(s)
	assert.Contains(t, got, "# Strategy strategy/prop (P)")
	assert.Contains(t, got, "| 1 | yes | no | no | 0 |")
	assert.Contains(t, got, "1. `0` O")
	assert.NotContains(t, got, "Violations")

	s.Diagnostics.Propagation = []string{"locus 0.1 is played two ways"}
	assert.Contains(t, StrategyReport(s), "## Violations\n\n- locus 0.1 is played two ways")

	r := correspondence.Report{PlaysViews: correspondence.CheckResult{Name: correspondence.CheckPlaysViews, Holds: true}}
	got = CheckReport(r)
	assert.Contains(t, got, "All hold: **no**")
	assert.Contains(t, got, "| plays_to_views | yes | 0 | 0 |  |")

	got = RoundTripReport("Design round trip", false, []string{"0.2"}, nil)
	assert.Contains(t, got, "Preserved: **no**")
	assert.Contains(t, got, "- missing: 0.2")
	assert.NotContains(t, got, "extra")
}

func TestBehaviourAndIncarnationReports(t *testing.T) {
	c := &behaviour.Closure{
		Polarity:   domain.PolarityP,
		Input:      []string{"pC"},
		Orthogonal: []string{"oW"},
		Members:    []string{"pC", "pA"},
		Added:      []string{"pA"},
		Iterations: 2,
		Complete:   true,
	}
	got := BehaviourReport(c)
	assert.Contains(t, got, "# Behaviour of pC (P)")
	assert.Contains(t, got, "Is behaviour: **no**")
	assert.Contains(t, got, "| 2 | 1 | 2 | yes |")
	assert.Contains(t, got, "- added by closure: pA")

	d := domain.NewDesign("prop", "budget", "alice", domain.PolarityP)
	d.Acts = []domain.Act{{LocusPath: "0", Polarity: domain.PolarityP, Kind: domain.KindProper, Expression: "claim"}}
	got = IncarnationReport(&behaviour.DesignIncarnation{Design: d, Counters: []string{"skeptic"}, Dropped: []string{"0.2"}})
	assert.Contains(t, got, "Visited by: skeptic")
	assert.Contains(t, got, "1. `0` P \"claim\"")
	assert.Contains(t, got, "Dropped: `0.2`")

	got = IncarnationReport(&behaviour.DesignIncarnation{Design: domain.NewDesign("lone", "budget", "", domain.PolarityP)})
	assert.Contains(t, got, "No orthogonal counter-design.")
}

func TestMovesReport(t *testing.T) {
	steps := []moves.Step{
		{Move: moves.Move{Kind: moves.Assert}, Acts: []domain.Act{{LocusPath: "0", Polarity: domain.PolarityP, Kind: domain.KindProper, Expression: "safe"}}},
		{Move: moves.Move{Kind: moves.Concede}, Acts: []domain.Act{{LocusPath: "0.1", Polarity: domain.PolarityO, Kind: domain.KindDaimon}}},
	}
	got := MovesReport("bridge", steps, true, "0.1")
	assert.Contains(t, got, "# Dialogue bridge")
	assert.Contains(t, got, "| 1 | ASSERT | `0` P \"safe\" |")
	assert.Contains(t, got, "| 2 | CONCEDE | `0.1` † |")
	assert.Contains(t, got, "Closed at `0.1`")
}
