package correspondence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/internal/chronicle"
	"github.com/aretw0/ludics/internal/strategy"
	"github.com/aretw0/ludics/pkg/domain"
)

type step struct {
	path, expr string
	ram        []string
	daimon     bool
}

func build(t *testing.T, id, participant string, pol domain.Polarity, steps ...step) *domain.Design {
	t.Helper()
	d := domain.NewDesign(id, "dlg", participant, pol)
	for _, s := range steps {
		kind := domain.KindProper
		if s.daimon {
			kind = domain.KindDaimon
		}
		var err error
		d, err = chronicle.AppendAct(d, domain.Act{Kind: kind, Polarity: pol, LocusPath: s.path, Expression: s.expr, Ramification: s.ram})
		require.NoError(t, err)
	}
	return d
}

func proponent(t *testing.T) *domain.Design {
	return build(t, "prop", "alice", domain.PolarityP,
		step{path: "0", expr: "claim", ram: []string{"1", "2"}},
		step{path: "0.1", expr: "first"},
		step{path: "0.2", expr: "second"},
	)
}

func opponent(t *testing.T) *domain.Design {
	return build(t, "opp", "bob", domain.PolarityO,
		step{path: "0", ram: []string{"1", "2"}},
		step{path: "0.1"},
		step{path: "0.2"},
	)
}

func TestDesignToStrategy(t *testing.T) {
	d := proponent(t)

	s, set, err := DesignToStrategy(d, []*domain.Design{opponent(t)}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, set.Count)
	assert.Equal(t, "strategy/prop", s.ID)
	assert.Equal(t, domain.PolarityP, s.Player)
	require.Equal(t, 1, s.PlayCount)
	assert.Equal(t, 6, s.Plays[0].Length)
	assert.True(t, s.IsInnocent)
	assert.True(t, s.SatisfiesPropagation)
	assert.True(t, s.IsSmallest)
}

func TestDesignToStrategy_NoCountersGivesEmptyStrategy(t *testing.T) {
	s, _, err := DesignToStrategy(proponent(t), nil, Options{})
	require.NoError(t, err)
	assert.Zero(t, s.PlayCount)
	assert.Equal(t, domain.PolarityP, s.Player)
}

func TestStrategyToDesign(t *testing.T) {
	o := opponent(t)
	s, _, err := DesignToStrategy(o, []*domain.Design{proponent(t)}, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, s.PlayCount, "the opponent's views split at the root")

	d, err := StrategyToDesign(s, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PolarityO, d.Polarity)
	assert.Len(t, d.Acts, 3)
	require.NoError(t, chronicle.Validate(d))

	withOrigin, err := StrategyToDesign(s, o)
	require.NoError(t, err)
	assert.Equal(t, "opp", withOrigin.ID)
	assert.Equal(t, "bob", withOrigin.ParticipantID)
}

func TestStrategyToDesign_DaimonGoesLast(t *testing.T) {
	o := build(t, "opp", "bob", domain.PolarityO,
		step{path: "0", ram: []string{"1", "2"}},
		step{path: "0.2"},
		step{path: "0.1", daimon: true},
	)
	s, _, err := DesignToStrategy(o, []*domain.Design{proponent(t)}, Options{})
	require.NoError(t, err)

	d, err := StrategyToDesign(s, nil)
	require.NoError(t, err)
	last, _ := d.Last()
	assert.True(t, last.IsDaimon())
	assert.True(t, d.HasDaimon)
}

func TestCounterDesigns(t *testing.T) {
	s, _, err := DesignToStrategy(opponent(t), []*domain.Design{proponent(t)}, Options{})
	require.NoError(t, err)

	counters, err := CounterDesigns(s)
	require.NoError(t, err)
	require.Len(t, counters, 2)
	for _, c := range counters {
		assert.Equal(t, domain.PolarityP, c.Polarity)
		assert.Len(t, c.Acts, 2)
	}
}

func TestCheckAll_HoldsForDerivedStrategies(t *testing.T) {
	for name, tc := range map[string]struct {
		design   *domain.Design
		counters []*domain.Design
	}{
		"proponent": {proponent(t), []*domain.Design{opponent(t)}},
		"opponent":  {opponent(t), []*domain.Design{proponent(t)}},
	} {
		t.Run(name, func(t *testing.T) {
			s, _, err := DesignToStrategy(tc.design, tc.counters, Options{})
			require.NoError(t, err)
			back, err := StrategyToDesign(s, tc.design)
			require.NoError(t, err)

			r := CheckAll(back, s, tc.counters, Options{})
			for _, c := range r.Checks() {
				assert.True(t, c.Holds, "%s: missing=%v extra=%v diag=%v err=%s", c.Name, c.Missing, c.Extra, c.Diagnostics, c.Error)
			}
			assert.True(t, r.AllHold)
			assert.True(t, AllHold(r))
		})
	}
}

func TestCheckAll_WithoutCountersUsesPlayWitnesses(t *testing.T) {
	d := opponent(t)
	s, _, err := DesignToStrategy(d, []*domain.Design{proponent(t)}, Options{})
	require.NoError(t, err)

	r := CheckAll(d, s, nil, Options{})
	assert.True(t, r.AllHold)
}

func TestChDisp_DetectsForeignStrategy(t *testing.T) {
	s, _, err := DesignToStrategy(proponent(t), []*domain.Design{opponent(t)}, Options{})
	require.NoError(t, err)

	other := build(t, "prop2", "alice", domain.PolarityP,
		step{path: "0", expr: "claim", ram: []string{"1", "2"}},
		step{path: "0.1", expr: "different"},
		step{path: "0.2", expr: "second"},
	)
	res := ChDisp(other, s, []*domain.Design{opponent(t)}, Options{})
	assert.False(t, res.Holds)
	assert.Equal(t, false, res.Diagnostics["strategy_matches"])
}

func TestViewsPlays(t *testing.T) {
	s, _, err := DesignToStrategy(opponent(t), []*domain.Design{proponent(t)}, Options{})
	require.NoError(t, err)

	res := ViewsPlays(strategy.Views(s), Options{})
	assert.True(t, res.Holds)
	assert.Equal(t, CheckViewsPlays, res.Name)

	empty := ViewsPlays(nil, Options{})
	assert.True(t, empty.Holds)
}

func TestRoundTripDesign(t *testing.T) {
	rt, err := RoundTripDesign(proponent(t), []*domain.Design{opponent(t)}, Options{})
	require.NoError(t, err)
	assert.True(t, rt.Preserved)

	partial := build(t, "opp2", "bob", domain.PolarityO,
		step{path: "0", ram: []string{"1", "2"}},
		step{path: "0.1"},
	)
	rt, err = RoundTripDesign(proponent(t), []*domain.Design{partial}, Options{})
	require.NoError(t, err)
	assert.False(t, rt.Preserved)
	assert.Equal(t, []string{"0.2"}, rt.Missing)
}

func TestRoundTripStrategy(t *testing.T) {
	for name, tc := range map[string]struct {
		design  *domain.Design
		counter *domain.Design
	}{
		"proponent": {proponent(t), opponent(t)},
		"opponent":  {opponent(t), proponent(t)},
	} {
		t.Run(name, func(t *testing.T) {
			s, _, err := DesignToStrategy(tc.design, []*domain.Design{tc.counter}, Options{})
			require.NoError(t, err)

			rt, err := RoundTripStrategy(s, nil, Options{})
			require.NoError(t, err)
			assert.True(t, rt.Preserved, "missing=%v extra=%v", rt.Missing, rt.Extra)

			rt, err = RoundTripStrategy(s, []*domain.Design{tc.counter}, Options{})
			require.NoError(t, err)
			assert.True(t, rt.Preserved)
		})
	}
}

// deepProponent and deepOpponent converge on a daimon two levels below the root,
// so the proponent's views skip the opponent act at 0.1.
func deepProponent(t *testing.T) *domain.Design {
	return build(t, "deep-prop", "alice", domain.PolarityP,
		step{path: "0", expr: "claim", ram: []string{"1"}},
		step{path: "0.1", expr: "because", ram: []string{"1"}},
	)
}

func deepOpponent(t *testing.T) *domain.Design {
	return build(t, "deep-opp", "bob", domain.PolarityO,
		step{path: "0", ram: []string{"1"}},
		step{path: "0.1", ram: []string{"1"}},
		step{path: "0.1.1", daimon: true},
	)
}

func TestCounterDesigns_OpenSkippedLoci(t *testing.T) {
	s, _, err := DesignToStrategy(deepProponent(t), []*domain.Design{deepOpponent(t)}, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, s.PlayCount)
	require.True(t, s.IsInnocent)

	counters, err := CounterDesigns(s)
	require.NoError(t, err)
	require.Len(t, counters, 2)

	var paths []string
	for _, a := range counters[1].Acts {
		paths = append(paths, a.LocusPath)
	}
	assert.Equal(t, []string{"0", "0.1", "0.1.1"}, paths)
	assert.True(t, counters[1].HasDaimon)
	assert.Equal(t, []string{"1"}, counters[1].Acts[1].Ramification)
}

func TestCounterDesigns_WildcardOpener(t *testing.T) {
	view := []domain.Act{
		{Kind: domain.KindProper, Polarity: domain.PolarityP, LocusPath: "0", Expression: "claim", Ramification: []string{"1"}},
		{Kind: domain.KindProper, Polarity: domain.PolarityO, LocusPath: "0", Ramification: []string{"1"}},
		{Kind: domain.KindProper, Polarity: domain.PolarityP, LocusPath: "0.1", Expression: "because", Ramification: []string{"1", "2"}},
		{Kind: domain.KindDaimon, Polarity: domain.PolarityO, LocusPath: "0.1.2"},
	}
	res, err := strategy.ComputePlays([]domain.View{domain.NewView(view, domain.PolarityP)}, strategy.Options{})
	require.NoError(t, err)
	s := strategy.Build("s", "", res)

	counters, err := CounterDesigns(s)
	require.NoError(t, err)
	require.Len(t, counters, 1)
	require.Len(t, counters[0].Acts, 3)
	opener := counters[0].Acts[1]
	assert.Equal(t, "0.1", opener.LocusPath)
	assert.Equal(t, domain.Wildcard, opener.Expression)
	assert.Equal(t, []string{"1", "2"}, opener.Ramification)
}

func TestCorrespondence_DeepDesignWithoutCounters(t *testing.T) {
	d := deepProponent(t)
	s, _, err := DesignToStrategy(d, []*domain.Design{deepOpponent(t)}, Options{})
	require.NoError(t, err)
	require.True(t, s.IsSmallest)

	r := CheckAll(d, s, nil, Options{})
	for _, c := range r.Checks() {
		assert.True(t, c.Holds, "%s: missing=%v extra=%v diag=%v err=%s", c.Name, c.Missing, c.Extra, c.Diagnostics, c.Error)
	}
	assert.True(t, r.AllHold)

	rt, err := RoundTripStrategy(s, nil, Options{})
	require.NoError(t, err)
	assert.True(t, rt.Preserved, "missing=%v extra=%v", rt.Missing, rt.Extra)
}
