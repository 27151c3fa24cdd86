package dispute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/internal/chronicle"
	"github.com/aretw0/ludics/internal/interaction"
	"github.com/aretw0/ludics/pkg/domain"
)

func build(t *testing.T, id, participant string, pol domain.Polarity, acts ...domain.Act) *domain.Design {
	t.Helper()
	d := domain.NewDesign(id, "dlg", participant, pol)
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

func at(path, expr string, ram ...string) domain.Act {
	return domain.Act{LocusPath: path, Expression: expr, Ramification: ram}
}

func daimonAt(path string) domain.Act {
	return domain.Act{Kind: domain.KindDaimon, LocusPath: path}
}

func fixture(t *testing.T) (*domain.Design, []*domain.Design) {
	d := build(t, "prop", "alice", domain.PolarityP,
		at("0", "claim", "1"),
		at("0.1", "", "1"),
		at("0.1.1", "because"),
	)
	counters := []*domain.Design{
		build(t, "concede", "bob", domain.PolarityO, at("0", "", "1"), daimonAt("0.1")),
		build(t, "reject", "bob", domain.PolarityO, at("0", "other claim", "1")),
		build(t, "question", "carol", domain.PolarityO, at("0", "", "1"), at("0.1", "why", "1")),
		build(t, "self", "alice", domain.PolarityO, at("0", "", "1")),
	}
	return d, counters
}

func TestCompute_KeepsOrthogonalCountersInOrder(t *testing.T) {
	d, counters := fixture(t)

	set, err := Compute(d, counters, interaction.Options{})
	require.NoError(t, err)

	require.Equal(t, 2, set.Count)
	assert.Equal(t, "prop/concede", set.Disputes[0].ID)
	assert.Equal(t, domain.StatusConvergent, set.Disputes[0].Status)
	assert.Equal(t, "prop/question", set.Disputes[1].ID)
	assert.Equal(t, domain.StatusStuck, set.Disputes[1].Status)
	assert.Equal(t, 2, set.Disputes[1].Length)
	assert.Equal(t, []string{"reject"}, set.Divergent)
	assert.Equal(t, []string{"self"}, set.Skipped)
}

func TestCompute_IsDeterministic(t *testing.T) {
	d, counters := fixture(t)
	first, err := Compute(d, counters, interaction.Options{})
	require.NoError(t, err)
	second, err := Compute(d, counters, interaction.Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompute_BudgetGivesOngoingDisputes(t *testing.T) {
	d, counters := fixture(t)
	set, err := Compute(d, counters[2:3], interaction.Options{MaxPairs: 1})
	require.NoError(t, err)
	require.Equal(t, 1, set.Count)
	assert.Equal(t, domain.StatusOngoing, set.Disputes[0].Status)
}

func TestCompute_NoCounters(t *testing.T) {
	d, _ := fixture(t)
	set, err := Compute(d, nil, interaction.Options{})
	require.NoError(t, err)
	assert.Zero(t, set.Count)
	assert.Empty(t, set.Disputes)
}

func TestOrthogonal(t *testing.T) {
	d, counters := fixture(t)

	ok, _, err := Orthogonal(d, counters[0], interaction.Options{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, res, err := Orthogonal(d, counters[1], interaction.Options{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, domain.StatusDivergent, res.Status)
}

func TestPlayOf(t *testing.T) {
	d, counters := fixture(t)
	set, err := Compute(d, counters[:1], interaction.Options{})
	require.NoError(t, err)

	seq := PlayOf(set.Disputes[0].Pairs, set.Disputes[0].Terminal)
	require.Len(t, seq, 4)
	assert.Equal(t, domain.PolarityP, seq[0].Polarity)
	assert.Equal(t, domain.PolarityO, seq[1].Polarity)
	assert.Equal(t, domain.PolarityP, seq[2].Polarity, "proper act precedes the daimon")
	assert.True(t, seq[3].IsDaimon())
}
