package printer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDefault(t *testing.T) {
	ctx := context.Background()

	t.Run("lowest priority wins", func(t *testing.T) {
		repo := NewMemoryRepository(
			Printer{ID: 1, Name: "a", SpoolName: "a", Priority: 5},
			Printer{ID: 2, Name: "b", SpoolName: "b", Priority: 1},
			Printer{ID: 3, Name: "c", SpoolName: "c", Priority: 3},
		)
		p, ok, err := repo.FindDefault(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(2), p.ID)
	})

	t.Run("empty yields no default", func(t *testing.T) {
		repo := NewMemoryRepository()
		_, ok, err := repo.FindDefault(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("recomputed after change", func(t *testing.T) {
		repo := NewMemoryRepository(
			Printer{ID: 1, Name: "a", SpoolName: "a", Priority: 2},
		)
		p, ok, err := repo.FindDefault(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(1), p.ID)

		require.NoError(t, repo.Save(ctx, Printer{ID: 9, Name: "z", SpoolName: "z", Priority: 0}))
		p, ok, err = repo.FindDefault(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(9), p.ID)
	})

	t.Run("inactive skipped", func(t *testing.T) {
		repo := NewMemoryRepository(
			Printer{ID: 1, Name: "a", SpoolName: "a", Priority: 1, Inactive: true},
			Printer{ID: 2, Name: "b", SpoolName: "b", Priority: 4},
		)
		p, ok, err := repo.FindDefault(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(2), p.ID)
	})
}

func TestValidate(t *testing.T) {
	err := Validate([]Printer{
		{ID: 1, Name: "a", SpoolName: "a", Priority: 1},
		{ID: 2, Name: "b", SpoolName: "b", Priority: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share priority 1")

	err = Validate([]Printer{
		{ID: 1, Name: "a", SpoolName: "a", Priority: 1},
		{ID: 2, Name: "b", SpoolName: "b", Priority: 1, Inactive: true},
	})
	assert.NoError(t, err)

	err = Validate([]Printer{{ID: 1, Name: "a", Priority: 1}})
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "printers.yaml")
	content := `printers:
  - name: Office
    spool_name: office_laser
    priority: 2
    price_one_sided: 0.05
    price_two_sided: 0.08
  - name: Lab
    spool_name: lab_color
    priority: 1
    price_one_sided: 0.20
    price_two_sided: 0.30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Printers, 2)
	assert.Equal(t, int64(1), cat.Printers[0].ID)
	assert.Equal(t, int64(2), cat.Printers[1].ID)

	p, ok, err := cat.Repository().FindDefault(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lab_color", p.SpoolName)
	assert.InDelta(t, 0.30, p.Prices().TwoSided, 1e-9)

	_, err = ParseCatalog([]byte("printers:\n  - name: x\n    bogus: 1\n"))
	assert.Error(t, err)
}
