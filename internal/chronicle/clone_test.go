package chronicle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
)

func subtreeDesign(t *testing.T) *domain.Design {
	p := domain.PolarityP
	j := proper(p, "0.2.2")
	j.JustifiedByLocus = "0.2.1"
	return build(t, p,
		proper(p, "0", "1", "2"),
		proper(p, "0.2", "1", "2"),
		proper(p, "0.2.1"),
		j,
		proper(p, "0.1"),
	)
}

func TestCloneSubtree_CopiesIntoParallelSubtree(t *testing.T) {
	d := subtreeDesign(t)
	original := domain.CloneActs(d.Acts)

	next, res, err := CloneSubtree(d, "0.2", "0.5")
	require.NoError(t, err)

	assert.Equal(t, 3, res.ClonedActs)
	assert.Equal(t, []string{"0.5", "0.5.1", "0.5.2"}, res.Destinations)
	require.Len(t, next.Acts, 8)

	var under5, under2 int
	for _, a := range next.Acts {
		switch {
		case locus.IsPrefix("0.5", a.LocusPath):
			under5++
		case locus.IsPrefix("0.2", a.LocusPath):
			under2++
		}
	}
	assert.Equal(t, 3, under5)
	assert.Equal(t, 3, under2)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, original[i], next.Acts[i], "source act %d changed", i)
	}

	root, _ := next.ActAt("0")
	assert.Contains(t, root.Ramification, "5")

	cloned, ok := next.ActAt("0.5.2")
	require.True(t, ok)
	assert.Equal(t, "0.5.1", cloned.JustifiedByLocus)
	assert.Equal(t, "0.2.2", cloned.Meta[MetaClonedFrom])

	require.NoError(t, Validate(next))
	assert.Len(t, d.Acts, 5, "input design must not change")
}

func TestCloneSubtree_InsertsBeforeDaimon(t *testing.T) {
	p := domain.PolarityP
	d := build(t, p,
		proper(p, "0", "1", "2"),
		proper(p, "0.2"),
		daimon(p, "0.1"),
	)

	next, res, err := CloneSubtree(d, "0.2", "0.3")
	require.NoError(t, err)

	assert.Equal(t, 1, res.ClonedActs)
	last, _ := next.Last()
	assert.True(t, last.IsDaimon())
	assert.Equal(t, 3, last.OrderInDesign)
}

func TestCloneSubtree_Rejections(t *testing.T) {
	d := subtreeDesign(t)

	_, _, err := CloneSubtree(d, "0.2", "0.2.9")
	assert.ErrorIs(t, err, domain.ErrMalformedChronicle)

	_, _, err = CloneSubtree(d, "0.2", "0.1")
	assert.ErrorIs(t, err, domain.ErrMalformedChronicle, "destination already played")

	_, _, err = CloneSubtree(d, "0.2", "0.7.1")
	assert.ErrorIs(t, err, domain.ErrMalformedChronicle, "no anchoring act")

	_, _, err = CloneSubtree(d, "0.9", "0.5")
	assert.ErrorIs(t, err, domain.ErrNoSuchLocus)
}
