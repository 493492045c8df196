package led

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *Resolver {
	overrides := []map[string]string{
		{"active": "00ff5500"},
		{},
	}
	defaults := map[string]string{
		"active":   "00ff0000",
		"inactive": "01010101",
		"failed":   "55002200",
	}
	return NewResolver(overrides, defaults)
}

func TestResolverOverrideWins(t *testing.T) {
	r := newTestResolver()

	c, ok := r.Resolve(0, "active")
	require.True(t, ok)
	assert.Equal(t, "00ff5500", c.Hex())
}

func TestResolverFallsBackToDefaults(t *testing.T) {
	r := newTestResolver()

	c, ok := r.Resolve(1, "active")
	require.True(t, ok)
	assert.Equal(t, "00ff0000", c.Hex())

	// service 0 has no override for failed
	c, ok = r.Resolve(0, "failed")
	require.True(t, ok)
	assert.Equal(t, "55002200", c.Hex())
}

func TestResolverUnmappedState(t *testing.T) {
	r := newTestResolver()

	_, ok := r.Resolve(0, "unknown-state")
	assert.False(t, ok)
	_, ok = r.Resolve(1, "reloading")
	assert.False(t, ok)
}

func TestResolverOutOfRangeIndex(t *testing.T) {
	r := newTestResolver()

	// falls through to the defaults instead of panicking
	c, ok := r.Resolve(7, "active")
	require.True(t, ok)
	assert.Equal(t, "00ff0000", c.Hex())

	c, ok = r.Resolve(-1, "active")
	require.True(t, ok)
	assert.Equal(t, "00ff0000", c.Hex())
}

func TestResolverMalformedColours(t *testing.T) {
	r := NewResolver(
		[]map[string]string{{"active": "not-a-colour"}},
		map[string]string{"active": "zz", "failed": "55002200"},
	)

	// malformed override and default both resolve to nothing
	_, ok := r.Resolve(0, "active")
	assert.False(t, ok)

	c, ok := r.Resolve(0, "failed")
	require.True(t, ok)
	assert.Equal(t, "55002200", c.Hex())
}
