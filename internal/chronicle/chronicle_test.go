package chronicle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/pkg/domain"
)

func proper(pol domain.Polarity, path string, ram ...string) domain.Act {
	return domain.Act{Kind: domain.KindProper, Polarity: pol, LocusPath: path, Ramification: ram}
}

func daimon(pol domain.Polarity, path string) domain.Act {
	return domain.Act{Kind: domain.KindDaimon, Polarity: pol, LocusPath: path}
}

func build(t *testing.T, pol domain.Polarity, acts ...domain.Act) *domain.Design {
	t.Helper()
	d := domain.NewDesign("d-"+string(pol), "dlg", "alice", pol)
	for _, a := range acts {
		var err error
		d, err = AppendAct(d, a)
		require.NoError(t, err)
	}
	return d
}

func TestAppendAct_AssignsOrderAndKeepsPrefix(t *testing.T) {
	d := build(t, domain.PolarityP, proper(domain.PolarityP, "0", "1", "2"))
	before := domain.CloneActs(d.Acts)

	next, err := AppendAct(d, proper(domain.PolarityP, "0.1"))
	require.NoError(t, err)

	require.Len(t, next.Acts, 2)
	assert.Equal(t, 1, next.Acts[1].OrderInDesign)
	assert.Equal(t, before, next.Acts[:1])
	assert.Equal(t, d.ID, next.Acts[1].DesignID)
	assert.NotEmpty(t, next.Acts[1].ID)
	assert.Equal(t, d.Version+1, next.Version)
	assert.Len(t, d.Acts, 1, "input design must not change")
}

func TestAppendAct_RootAlias(t *testing.T) {
	d := build(t, domain.PolarityP, proper(domain.PolarityP, "", "1"))
	assert.Equal(t, "0", d.Acts[0].LocusPath)
}

func TestAppendAct_RejectsUnopenedLocus(t *testing.T) {
	d := domain.NewDesign("d", "dlg", "alice", domain.PolarityP)

	_, err := AppendAct(d, proper(domain.PolarityP, "0.1"))

	require.ErrorIs(t, err, domain.ErrMalformedChronicle)
	var ce *domain.ChronicleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "0.1", ce.Locus)
	assert.Empty(t, d.Acts)
}

func TestAppendAct_Violations(t *testing.T) {
	base := build(t, domain.PolarityP, proper(domain.PolarityP, "0", "1"))
	closed := build(t, domain.PolarityP, proper(domain.PolarityP, "0", "1"), daimon(domain.PolarityP, "0.1"))

	tests := []struct {
		name   string
		design *domain.Design
		act    domain.Act
	}{
		{"wrong polarity", base, proper(domain.PolarityO, "0.1")},
		{"replayed locus", base, proper(domain.PolarityP, "0")},
		{"after daimon", closed, proper(domain.PolarityP, "0.1")},
		{"daimon with ramification", base, domain.Act{Kind: domain.KindDaimon, Polarity: domain.PolarityP, LocusPath: "0.1", Ramification: []string{"1"}}},
		{"unknown kind", base, domain.Act{Kind: "JUMP", Polarity: domain.PolarityP, LocusPath: "0.1"}},
		{"bad segment", base, proper(domain.PolarityP, "0.1", "x y")},
		{"duplicate segment", base, proper(domain.PolarityP, "0.1", "1", "1")},
		{"malformed path", base, proper(domain.PolarityP, "0..1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := len(tt.design.Acts)
			_, err := AppendAct(tt.design, tt.act)
			assert.ErrorIs(t, err, domain.ErrMalformedChronicle)
			assert.Len(t, tt.design.Acts, n)
		})
	}
}

func TestAppendAct_DaimonDefaultPlacement(t *testing.T) {
	d := build(t, domain.PolarityO, proper(domain.PolarityO, "0", "1", "2"))

	next, err := AppendAct(d, daimon(domain.PolarityO, ""))
	require.NoError(t, err)

	last, _ := next.Last()
	assert.Equal(t, "0.2", last.LocusPath)
	assert.True(t, next.HasDaimon)
	assert.Empty(t, FreeLoci(next))
}

func TestAppendAct_DaimonNeedsOpenLocus(t *testing.T) {
	d := build(t, domain.PolarityP, proper(domain.PolarityP, "0"))
	_, err := AppendAct(d, daimon(domain.PolarityP, ""))
	assert.ErrorIs(t, err, domain.ErrMalformedChronicle)
}

func TestValidate(t *testing.T) {
	d := build(t, domain.PolarityP, proper(domain.PolarityP, "0", "1"), proper(domain.PolarityP, "0.1"))
	require.NoError(t, Validate(d))

	broken := d.Clone()
	broken.Acts[1].OrderInDesign = 5
	assert.ErrorIs(t, Validate(broken), domain.ErrMalformedChronicle)

	swapped := d.Clone()
	swapped.Acts[0], swapped.Acts[1] = swapped.Acts[1], swapped.Acts[0]
	swapped.Acts[0].OrderInDesign, swapped.Acts[1].OrderInDesign = 0, 1
	assert.ErrorIs(t, Validate(swapped), domain.ErrMalformedChronicle)
}

func TestChronicleOrdersByOrderInDesign(t *testing.T) {
	d := build(t, domain.PolarityP, proper(domain.PolarityP, "0", "1"), proper(domain.PolarityP, "0.1"))
	d.Acts[0], d.Acts[1] = d.Acts[1], d.Acts[0]

	acts := Chronicle(d)
	assert.Equal(t, "0", acts[0].LocusPath)
	assert.Equal(t, "0.1", acts[1].LocusPath)
}
