package engine

import (
	"errors"
	"testing"

	"ace-league/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCuratedRange(t *testing.T) {
	for n := 4; n <= 24; n++ {
		split := Split(n)
		require.NotEmpty(t, split, "n=%d", n)

		sum := 0
		for _, size := range split {
			assert.GreaterOrEqual(t, size, MinGroupSize, "n=%d split=%v", n, split)
			assert.LessOrEqual(t, size, MaxGroupSize, "n=%d split=%v", n, split)
			sum += size
		}
		assert.Equal(t, n, sum, "n=%d split=%v", n, split)
	}
}

func TestSplitCuratedEntries(t *testing.T) {
	assert.Equal(t, []int{5, 4}, Split(9))
	assert.Equal(t, []int{4, 4, 4, 4, 4}, Split(20))
	assert.Equal(t, []int{6, 6, 6}, Split(18))
	assert.Equal(t, []int{8}, Split(8))
}

func TestSplitTooFewParticipants(t *testing.T) {
	for n := 0; n < 4; n++ {
		assert.Empty(t, Split(n), "n=%d", n)
	}
}

func TestSplitSearchAboveTable(t *testing.T) {
	for n := 25; n <= 40; n++ {
		split := Split(n)
		require.NotEmpty(t, split, "n=%d", n)

		sum := 0
		for _, size := range split {
			assert.GreaterOrEqual(t, size, MinGroupSize, "n=%d split=%v", n, split)
			assert.LessOrEqual(t, size, MaxGroupSize, "n=%d split=%v", n, split)
			sum += size
		}
		assert.Equal(t, n, sum, "n=%d split=%v", n, split)
	}
}

func TestTotalGames(t *testing.T) {
	assert.Equal(t, 3, TotalGames([]int{4}))
	assert.Equal(t, 18, TotalGames([]int{4, 4, 4, 4, 4, 4}))
	assert.Equal(t, 13, TotalGames([]int{8, 5}))
}

func TestValidateSplit(t *testing.T) {
	t.Run("accepts exact partition", func(t *testing.T) {
		assert.NoError(t, ValidateSplit([]int{5, 4}, 9))
	})

	t.Run("rejects sum mismatch", func(t *testing.T) {
		err := ValidateSplit([]int{5, 5}, 9)
		require.Error(t, err)
		var verr *domain.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("rejects size out of range", func(t *testing.T) {
		err := ValidateSplit([]int{9}, 9)
		require.Error(t, err)
		var verr *domain.ValidationError
		assert.True(t, errors.As(err, &verr))

		err = ValidateSplit([]int{3, 3, 3}, 9)
		require.Error(t, err)
	})
}

func TestParseSplit(t *testing.T) {
	split, err := ParseSplit(" 5, 4 ")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4}, split)

	split, err = ParseSplit("")
	require.NoError(t, err)
	assert.Nil(t, split)

	_, err = ParseSplit("5,x")
	require.Error(t, err)
}
