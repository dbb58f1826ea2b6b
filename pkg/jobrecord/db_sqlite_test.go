//go:build !cgo

package jobrecord

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsRemoteStore(t *testing.T) {
	_, err := Open(context.Background(), Config{URL: "libsql://jobs.turso.io", AuthToken: "secret"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteStore)
	assert.NotContains(t, err.Error(), "secret")
}
