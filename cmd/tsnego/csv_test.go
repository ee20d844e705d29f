package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tsnego/model"
)

func TestReadCSV(t *testing.T) {
	t.Run("Numbered", func(t *testing.T) {
		c, err := readCSV(strings.NewReader("1,2,3\n4, 5, 6\n"), false, -1)
		require.NoError(t, err)
		require.Equal(t, 2, c.Len())
		assert.Equal(t, model.ID(1), c.ID(1))
		assert.Equal(t, []float64{4, 5, 6}, c.Vector(1))
	})

	t.Run("HeaderAndIDs", func(t *testing.T) {
		c, err := readCSV(strings.NewReader("x,id,y\n0.5,17,1\n1.5,9,2\n"), true, 1)
		require.NoError(t, err)
		require.Equal(t, 2, c.Len())
		assert.Equal(t, model.ID(17), c.ID(0))
		assert.Equal(t, []float64{1.5, 2}, c.Vector(1))
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := readCSV(strings.NewReader("1,a\n"), false, -1)
		assert.ErrorContains(t, err, "line 1, column 2")

		_, err = readCSV(strings.NewReader("1,2\n"), false, 5)
		assert.ErrorContains(t, err, "no id column")

		_, err = readCSV(strings.NewReader("-1,2\n"), false, 0)
		assert.ErrorContains(t, err, "id")

		_, err = readCSV(strings.NewReader("1,1\n1,2\n"), false, 0)
		assert.ErrorIs(t, err, model.ErrDuplicateID)

		_, err = readCSV(strings.NewReader("1,2\n3\n"), false, -1)
		assert.Error(t, err)
	})
}

func TestWriteCSV(t *testing.T) {
	emb, err := model.NewEmbedding([]model.ID{7, 3}, 2, [][]float64{{0.5, -1}, {2, 1e-3}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, emb))
	assert.Equal(t, "7,0.5,-1\n3,2,0.001\n", buf.String())
}
