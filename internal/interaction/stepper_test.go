package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/internal/chronicle"
	"github.com/aretw0/ludics/pkg/domain"
)

func act(kind domain.ActKind, pol domain.Polarity, path, expr string, ram ...string) domain.Act {
	return domain.Act{Kind: kind, Polarity: pol, LocusPath: path, Expression: expr, Ramification: ram}
}

func design(t *testing.T, id string, pol domain.Polarity, acts ...domain.Act) *domain.Design {
	t.Helper()
	d := domain.NewDesign(id, "dlg", id, pol)
	for _, a := range acts {
		a.Polarity = pol
		var err error
		d, err = chronicle.AppendAct(d, a)
		require.NoError(t, err)
	}
	return d
}

const (
	proper = domain.KindProper
	dai    = domain.KindDaimon
	P      = domain.PolarityP
	O      = domain.PolarityO
)

// threeStep needs three pairs to reach the opponent's daimon.
func threeStep(t *testing.T) (*domain.Design, *domain.Design) {
	pos := design(t, "pos", P,
		act(proper, P, "0", "claim", "1"),
		act(proper, P, "0.1", "", "1"),
		act(proper, P, "0.1.1", "because"),
	)
	neg := design(t, "neg", O,
		act(proper, O, "0", "*", "1"),
		act(proper, O, "0.1", "why", "1"),
		act(dai, O, "0.1.1", ""),
	)
	return pos, neg
}

func TestStep_OnePairConvergent(t *testing.T) {
	pos := design(t, "pos", P, act(proper, P, "0", "claim"))
	neg := design(t, "neg", O, act(dai, O, "0", ""))

	res, err := Step(pos, neg, Options{})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConvergent, res.Status)
	assert.Len(t, res.Pairs, 1)
	assert.Equal(t, []string{"0"}, res.DaimonHints)
	assert.Equal(t, O, res.StuckPlayer)
	assert.Equal(t, P, res.Winner)
}

func TestStep_BudgetExhaustedIsOngoing(t *testing.T) {
	pos, neg := threeStep(t)

	res, err := Step(pos, neg, Options{MaxPairs: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOngoing, res.Status)
	assert.True(t, res.BudgetExceeded)
	assert.Len(t, res.Pairs, 1)

	full, err := Step(pos, neg, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConvergent, full.Status)
	assert.Len(t, full.Pairs, 3)
	assert.Equal(t, []string{"0.1.1"}, full.DaimonHints)
}

func TestStep_ExactBudgetStillTerminates(t *testing.T) {
	pos, neg := threeStep(t)
	res, err := Step(pos, neg, Options{MaxPairs: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConvergent, res.Status)
}

func TestStep_IsSymmetric(t *testing.T) {
	pos, neg := threeStep(t)

	ab, err := Step(pos, neg, Options{})
	require.NoError(t, err)
	ba, err := Step(neg, pos, Options{})
	require.NoError(t, err)

	assert.Equal(t, ab.Status, ba.Status)
	assert.Equal(t, len(ab.Pairs), len(ba.Pairs))
	assert.Equal(t, ab.DaimonHints, ba.DaimonHints)
}

func TestStep_IsDeterministicAndReadOnly(t *testing.T) {
	pos, neg := threeStep(t)
	posBefore, negBefore := pos.Clone(), neg.Clone()

	first, err := Step(pos, neg, Options{Phase: "opening"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Step(pos, neg, Options{Phase: "opening"})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, posBefore, pos)
	assert.Equal(t, negBefore, neg)
	assert.Equal(t, "opening", first.Phase)
}

func TestStep_ExpressionMismatchDiverges(t *testing.T) {
	pos := design(t, "pos", P, act(proper, P, "0", "rain", "1"))
	neg := design(t, "neg", O, act(proper, O, "0", "snow", "1"))

	res, err := Step(pos, neg, Options{})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDivergent, res.Status)
	assert.Empty(t, res.Pairs)
	require.NotNil(t, res.Divergence)
	assert.Equal(t, "0", res.Divergence.Locus)
}

func TestStep_RamificationMismatchDiverges(t *testing.T) {
	pos := design(t, "pos", P, act(proper, P, "0", "", "1", "2"))
	neg := design(t, "neg", O, act(proper, O, "0", "", "1"))

	res, err := Step(pos, neg, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDivergent, res.Status)
}

func TestStep_CustomCompatibility(t *testing.T) {
	pos := design(t, "pos", P, act(proper, P, "0", "rain"))
	neg := design(t, "neg", O, act(proper, O, "0", "snow"))

	res, err := Step(pos, neg, Options{Compatible: func(p, o domain.Act) string { return "" }})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStuck, res.Status)
	assert.Len(t, res.Pairs, 1)
}

func TestStep_StuckWithoutDaimon(t *testing.T) {
	pos := design(t, "pos", P,
		act(proper, P, "0", "", "1", "2"),
		act(proper, P, "0.2", "x"),
	)
	neg := design(t, "neg", O,
		act(proper, O, "0", "", "1", "2"),
		act(proper, O, "0.1", "y"),
	)

	res, err := Step(pos, neg, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStuck, res.Status)
	assert.Len(t, res.Pairs, 1)
	assert.Empty(t, res.DaimonHints)
}

func TestStep_UnpairedDaimonConverges(t *testing.T) {
	pos := design(t, "pos", P,
		act(proper, P, "0", "claim", "1"),
		act(dai, P, "0.1", ""),
	)
	neg := design(t, "neg", O, act(proper, O, "0", "", "1"))

	res, err := Step(pos, neg, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConvergent, res.Status)
	assert.Len(t, res.Pairs, 1)
	require.NotNil(t, res.Terminal)
	assert.Equal(t, "0.1", res.Terminal.LocusPath)
	assert.Equal(t, []string{"0.1"}, res.DaimonHints)
	assert.Equal(t, P, res.StuckPlayer)
	assert.Equal(t, O, res.Winner)
}

func TestStep_VisitsSiblingsInCanonicalOrder(t *testing.T) {
	pos := design(t, "pos", P,
		act(proper, P, "0", "", "2", "10", "1"),
		act(proper, P, "0.10", ""),
		act(proper, P, "0.2", ""),
		act(proper, P, "0.1", ""),
	)
	neg := design(t, "neg", O,
		act(proper, O, "0", "", "1", "2", "10"),
		act(proper, O, "0.2", ""),
		act(proper, O, "0.1", ""),
		act(proper, O, "0.10", ""),
	)

	res, err := Step(pos, neg, Options{})
	require.NoError(t, err)

	var loci []string
	for _, p := range res.Pairs {
		loci = append(loci, p.Locus)
	}
	assert.Equal(t, []string{"0", "0.1", "0.2", "0.10"}, loci)
	assert.Equal(t, domain.StatusStuck, res.Status)
}

func TestStep_RejectsSamePolarity(t *testing.T) {
	a := design(t, "a", P, act(proper, P, "0", ""))
	b := design(t, "b", P, act(proper, P, "0", ""))

	_, err := Step(a, b, Options{})
	assert.ErrorIs(t, err, domain.ErrPolarityMismatch)
}
