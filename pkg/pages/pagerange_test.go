package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	t.Run("singles and spans", func(t *testing.T) {
		r, ok := ParseRange("1,4-9")
		require.True(t, ok)
		assert.Equal(t, []int{1, 4, 5, 6, 7, 8, 9}, r.Pages())
		assert.Equal(t, 7, r.Len())
		assert.Equal(t, "1,4-9", r.String())
	})

	t.Run("whitespace ignored", func(t *testing.T) {
		r, ok := ParseRange(" 2 - 3 , 5 ")
		require.True(t, ok)
		assert.Equal(t, []int{2, 3, 5}, r.Pages())
		assert.Equal(t, "2-3,5", r.String())
	})

	t.Run("duplicates and order preserved", func(t *testing.T) {
		r, ok := ParseRange("3,1,1-2")
		require.True(t, ok)
		assert.Equal(t, []int{3, 1, 1, 2}, r.Pages())
	})

	malformed := []string{"", "abc", "1-", "-3", "1-2-3", "0", "2,,3", "3-1", "1-x"}
	for _, expr := range malformed {
		t.Run("malformed "+expr, func(t *testing.T) {
			r, ok := ParseRange(expr)
			assert.False(t, ok)
			assert.True(t, r.IsZero())
		})
	}
}
