package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ludics/pkg/domain"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	dialogue := "contract-dialogue-" + suffix

	newDesign := func(id string) *domain.Design {
		d := domain.NewDesign(id, dialogue, "alice", domain.PolarityP)
		d.Acts = []domain.Act{
			{ID: id + "-a0", DesignID: id, Kind: domain.KindProper, Polarity: domain.PolarityP, LocusPath: "0", Ramification: []string{"1", "2"}, Expression: "claim", OrderInDesign: 0},
			{ID: id + "-a1", DesignID: id, Kind: domain.KindProper, Polarity: domain.PolarityP, LocusPath: "0.1", Ramification: []string{}, Expression: "ground", OrderInDesign: 1},
		}
		return d
	}

	t.Run("EnsureLocus creates ancestors", func(t *testing.T) {
		l, err := store.EnsureLocus(ctx, dialogue, "0.1.2")
		require.NoError(t, err)
		assert.Equal(t, "0.1.2", l.Path)
		assert.Equal(t, "0.1", l.ParentPath)
		assert.Equal(t, dialogue, l.DialogueID)
		assert.NotEmpty(t, l.ID)

		for _, path := range []string{"0", "0.1"} {
			anc, err := store.GetLocus(ctx, dialogue, path)
			require.NoError(t, err, "ancestor %s", path)
			assert.Equal(t, path, anc.Path)
		}
	})

	t.Run("EnsureLocus is idempotent", func(t *testing.T) {
		first, err := store.EnsureLocus(ctx, dialogue, "0.3")
		require.NoError(t, err)
		second, err := store.EnsureLocus(ctx, dialogue, "0.3")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("EnsureLocus normalizes the root alias", func(t *testing.T) {
		l, err := store.EnsureLocus(ctx, dialogue, "")
		require.NoError(t, err)
		assert.Equal(t, "0", l.Path)
		assert.True(t, l.IsRoot())
	})

	t.Run("EnsureLocus rejects malformed paths", func(t *testing.T) {
		_, err := store.EnsureLocus(ctx, dialogue, "0..1")
		assert.ErrorIs(t, err, domain.ErrEnsureLocusFailed)
	})

	t.Run("EnsureLocus concurrent callers share one locus", func(t *testing.T) {
		const n = 8
		ids := make([]string, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				l, err := store.EnsureLocus(ctx, dialogue, "0.7.1")
				if err == nil {
					ids[i] = l.ID
				}
			}(i)
		}
		wg.Wait()
		for i := 1; i < n; i++ {
			assert.Equal(t, ids[0], ids[i])
		}
	})

	t.Run("GetLocus Non-Existent", func(t *testing.T) {
		_, err := store.GetLocus(ctx, dialogue, "0.99")
		assert.ErrorIs(t, err, domain.ErrNoSuchLocus)
	})

	t.Run("ListLoci is in canonical order", func(t *testing.T) {
		other := dialogue + "-list"
		for _, p := range []string{"0.10", "0.2", "0.1.1"} {
			_, err := store.EnsureLocus(ctx, other, p)
			require.NoError(t, err)
		}
		loci, err := store.ListLoci(ctx, other)
		require.NoError(t, err)
		paths := make([]string, len(loci))
		for i, l := range loci {
			paths[i] = l.Path
		}
		assert.Equal(t, []string{"0", "0.1", "0.1.1", "0.2", "0.10"}, paths)
	})

	t.Run("Create and Get Design", func(t *testing.T) {
		id := "design-" + suffix
		d := newDesign(id)
		require.NoError(t, store.CreateDesign(ctx, d))

		loaded, err := store.GetDesign(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, d.ID, loaded.ID)
		assert.Equal(t, domain.PolarityP, loaded.Polarity)
		require.Len(t, loaded.Acts, 2)
		assert.Equal(t, "0", loaded.Acts[0].LocusPath)
		assert.Equal(t, []string{"1", "2"}, loaded.Acts[0].Ramification)
		assert.Equal(t, "0.1", loaded.Acts[1].LocusPath)

		err = store.CreateDesign(ctx, d)
		assert.ErrorIs(t, err, domain.ErrDesignExists)
	})

	t.Run("Get returns a copy", func(t *testing.T) {
		id := "design-copy-" + suffix
		require.NoError(t, store.CreateDesign(ctx, newDesign(id)))

		loaded, err := store.GetDesign(ctx, id)
		require.NoError(t, err)
		loaded.Acts[0].Expression = "mutated"

		again, err := store.GetDesign(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "claim", again.Acts[0].Expression)
	})

	t.Run("Save Design", func(t *testing.T) {
		id := "design-save-" + suffix
		d := newDesign(id)
		require.NoError(t, store.CreateDesign(ctx, d))

		d.Acts = append(d.Acts, domain.Act{ID: id + "-a2", DesignID: id, Kind: domain.KindDaimon, Polarity: domain.PolarityP, LocusPath: "0.2", Ramification: []string{}, OrderInDesign: 2})
		d.HasDaimon = true
		d.Version = 3
		require.NoError(t, store.SaveDesign(ctx, d))

		loaded, err := store.GetDesign(ctx, id)
		require.NoError(t, err)
		require.Len(t, loaded.Acts, 3)
		assert.True(t, loaded.Acts[2].IsDaimon())
		assert.True(t, loaded.HasDaimon)
		assert.Equal(t, 3, loaded.Version)

		err = store.SaveDesign(ctx, newDesign("missing-"+suffix))
		assert.ErrorIs(t, err, domain.ErrNoSuchDesign)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetDesign(ctx, "non-existent-"+suffix)
		assert.ErrorIs(t, err, domain.ErrNoSuchDesign)
	})

	t.Run("Delete", func(t *testing.T) {
		id := "design-delete-" + suffix
		require.NoError(t, store.CreateDesign(ctx, newDesign(id)))

		require.NoError(t, store.DeleteDesign(ctx, id), "Delete should not return error")

		_, err := store.GetDesign(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNoSuchDesign, "Get after Delete should return ErrNoSuchDesign")
		assert.ErrorIs(t, store.DeleteDesign(ctx, id), domain.ErrNoSuchDesign, "deleting twice reports the missing design")
	})

	t.Run("List", func(t *testing.T) {
		id1 := fmt.Sprintf("design-list-%s-1", suffix)
		id2 := fmt.Sprintf("design-list-%s-2", suffix)
		require.NoError(t, store.CreateDesign(ctx, newDesign(id1)))
		require.NoError(t, store.CreateDesign(ctx, newDesign(id2)))
		defer func() {
			_ = store.DeleteDesign(ctx, id1)
			_ = store.DeleteDesign(ctx, id2)
		}()

		ids, err := store.ListDesigns(ctx, dialogue)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)

		all, err := store.ListDesigns(ctx, "")
		require.NoError(t, err)
		assert.Contains(t, all, id1)

		none, err := store.ListDesigns(ctx, "other-"+dialogue)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
