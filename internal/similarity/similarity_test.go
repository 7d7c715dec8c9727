package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/internal/vectors"
	"github.com/dustin/coursemate-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeWithVectors(t *testing.T, items []catalog.Item, dense []float32, dim int) *catalog.Store {
	t.Helper()
	s, _ := catalog.Build(items)
	m, err := vectors.NewMatrixFromDense(dense, len(items), dim)
	require.NoError(t, err)
	s, err = s.WithVectors(m)
	require.NoError(t, err)
	return s
}

func threeItems() []catalog.Item {
	return []catalog.Item{
		{ID: 1, Title: "seed", SourceRow: 0},
		{ID: 2, Title: "close", SourceRow: 1},
		{ID: 3, Title: "far", SourceRow: 2},
	}
}

func TestNearest_OrdersByCosine(t *testing.T) {
	s := storeWithVectors(t, threeItems(), []float32{
		1, 0, 0,
		0.9, 0.1, 0,
		0, 1, 0,
	}, 3)
	engine := NewEngine(s, logger.NewNop())

	got, err := engine.Nearest(context.Background(), 0, 2, nil)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Row)
	assert.Equal(t, 2, got[1].Row)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestNearest_Properties(t *testing.T) {
	items := make([]catalog.Item, 8)
	dense := make([]float32, 0, 8*4)
	for i := range items {
		items[i] = catalog.Item{ID: int64(i + 1), Title: "t", SourceRow: i}
		dense = append(dense, float32(i%3), float32(i%2), 1, float32(i%4))
	}
	s := storeWithVectors(t, items, dense, 4)
	engine := NewEngine(s, logger.NewNop())

	for seed := 0; seed < len(items); seed++ {
		for _, k := range []int{1, 3, 20} {
			got, err := engine.Nearest(context.Background(), seed, k, nil)
			require.NoError(t, err)

			assert.LessOrEqual(t, len(got), k)
			for i, r := range got {
				assert.NotEqual(t, seed, r.Row)
				assert.GreaterOrEqual(t, r.Score, -1.0)
				assert.LessOrEqual(t, r.Score, 1.0)
				if i > 0 {
					assert.True(t, better(got[i-1], got[i]) || got[i-1] == got[i])
				}
			}

			again, err := engine.Nearest(context.Background(), seed, k, nil)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		}
	}
}

func TestNearest_TiesByRow(t *testing.T) {
	items := []catalog.Item{
		{ID: 10, Title: "seed", SourceRow: 0},
		{ID: 11, Title: "twin b", SourceRow: 1},
		{ID: 12, Title: "other", SourceRow: 2},
		{ID: 13, Title: "twin a", SourceRow: 3},
	}
	s := storeWithVectors(t, items, []float32{
		1, 0,
		1, 0,
		0, 1,
		1, 0,
	}, 2)

	got, err := NewEngine(s, logger.NewNop()).Nearest(context.Background(), 0, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 2}, []int{got[0].Row, got[1].Row, got[2].Row})
}

func TestNearest_Mask(t *testing.T) {
	s := storeWithVectors(t, threeItems(), []float32{
		1, 0, 0,
		0.9, 0.1, 0,
		0, 1, 0,
	}, 3)

	got, err := NewEngine(s, logger.NewNop()).Nearest(context.Background(), 0, 5, catalog.IDNotIn([]int64{2}))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Row)
}

func TestNearest_NoEmbedding(t *testing.T) {
	bare, _ := catalog.Build(threeItems())
	_, err := NewEngine(bare, logger.NewNop()).Nearest(context.Background(), 0, 2, nil)
	assert.True(t, errors.Is(err, ErrNoEmbedding))

	zeroSeed := storeWithVectors(t, threeItems(), []float32{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
	}, 3)
	_, err = NewEngine(zeroSeed, logger.NewNop()).Nearest(context.Background(), 0, 2, nil)
	assert.True(t, errors.Is(err, ErrNoEmbedding))
}

func TestNearest_BadSeedAndK(t *testing.T) {
	s := storeWithVectors(t, threeItems(), []float32{1, 0, 0, 1, 0, 0, 0, 1, 0}, 3)
	engine := NewEngine(s, logger.NewNop())

	_, err := engine.Nearest(context.Background(), 7, 2, nil)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	got, err := engine.Nearest(context.Background(), 0, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNearest_Cancelled(t *testing.T) {
	s := storeWithVectors(t, threeItems(), []float32{1, 0, 0, 1, 0, 0, 0, 1, 0}, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(s, logger.NewNop()).Nearest(ctx, 0, 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOverSelect(t *testing.T) {
	assert.Equal(t, 50, OverSelect(3, 5, 50))
	assert.Equal(t, 100, OverSelect(20, 5, 50))
}
