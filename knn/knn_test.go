package knn

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tsnego/distance"
)

func lineQuery() distance.Query {
	// Points at 0, 1, 3, 6, 10 on a line.
	pos := []float64{0, 1, 3, 6, 10}
	return distance.QueryFunc(func(i, j int) float64 { return math.Abs(pos[i] - pos[j]) })
}

func TestFlatSearch(t *testing.T) {
	ctx := context.Background()
	f := NewFlat(lineQuery(), 5)

	res, err := f.Search(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 1, res[0].Offset)
	assert.InDelta(t, 2, res[0].Distance, 1e-12)
	assert.Equal(t, 0, res[1].Offset)
	assert.InDelta(t, 3, res[1].Distance, 1e-12)

	// k larger than the relation is clamped and never includes the query.
	res, err = f.Search(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, res, 4)
	for i, nb := range res {
		assert.NotEqual(t, 0, nb.Offset)
		if i > 0 {
			assert.LessOrEqual(t, res[i-1].Distance, nb.Distance)
		}
	}

	res, err = f.Search(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestFlatSearchErrors(t *testing.T) {
	f := NewFlat(lineQuery(), 5)

	_, err := f.Search(context.Background(), 0, -1)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = f.Search(context.Background(), 5, 1)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Search(ctx, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchAll(t *testing.T) {
	f := NewFlat(lineQuery(), 5)

	seq, err := SearchAll(context.Background(), f, 5, 2, 1)
	require.NoError(t, err)
	par, err := SearchAll(context.Background(), f, 5, 2, 4)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
	assert.Equal(t, 3, seq[4][0].Offset)
}
