package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gospool/pkg/printer"
)

func TestStoreHealthChecker(t *testing.T) {
	err := storeHealthChecker{}.CheckHealth(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job store not open")
}

func TestCatalogHealthChecker(t *testing.T) {
	ctx := context.Background()

	err := catalogHealthChecker{}.CheckHealth(ctx)
	require.Error(t, err)

	err = catalogHealthChecker{printers: printer.NewMemoryRepository(
		printer.Printer{ID: 1, Name: "Attic", Priority: 1, Inactive: true},
	)}.CheckHealth(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active printer")

	err = catalogHealthChecker{printers: printer.NewMemoryRepository(
		printer.Printer{ID: 2, Name: "Lab", Priority: 1},
	)}.CheckHealth(ctx)
	assert.NoError(t, err)
}

func TestPageLogHealthChecker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page_log")
	err := pageLogHealthChecker{path: path}.CheckHealth(context.Background())
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.NoError(t, pageLogHealthChecker{path: path}.CheckHealth(context.Background()))
}

func TestIdentityHealthChecker(t *testing.T) {
	ok := identityHealthChecker{binaryName: "gospool", envPrefix: "GOSPOOL", configName: "gospool"}
	assert.NoError(t, ok.CheckHealth(context.Background()))

	broken := map[string]identityHealthChecker{
		"missing binary name": {envPrefix: "GOSPOOL", configName: "gospool"},
		"missing env prefix":  {binaryName: "gospool", configName: "gospool"},
		"missing config name": {binaryName: "gospool", envPrefix: "GOSPOOL"},
	}
	for want, c := range broken {
		err := c.CheckHealth(context.Background())
		require.Error(t, err, want)
		assert.Contains(t, err.Error(), want)
	}
}
