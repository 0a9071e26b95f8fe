package registry

import (
	"testing"

	reg "github.com/jxo-me/ddnsd/core/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := new(registry[int])

	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("", 2))
	assert.ErrorIs(t, r.Register("a", 3), reg.ErrDup)

	assert.True(t, r.IsRegistered("a"))
	assert.False(t, r.IsRegistered(""))
	assert.Equal(t, 1, r.Get("a"))
	assert.Equal(t, 0, r.Get("missing"))
	assert.Equal(t, map[string]int{"a": 1}, r.GetAll())

	r.Unregister("a")
	assert.False(t, r.IsRegistered("a"))
	assert.Empty(t, r.GetAll())
}
