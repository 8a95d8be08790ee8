package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectIDsShape(t *testing.T) {
	gen := ObjectIDs()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen.NewID()
		require.True(t, Valid(id), "id %q", id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}

func TestObjectIDsSortByCreation(t *testing.T) {
	gen := ObjectIDs()
	first := gen.NewID()
	second := gen.NewID()
	// same second, counter bytes increase
	assert.Less(t, first[:8], "ffffffff")
	assert.LessOrEqual(t, first[:8], second[:8])
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("647b4b9b6a35ed7eea438f0"))
	assert.False(t, Valid("zz7b4b9b6a35ed7eea438f0b"))
	assert.True(t, Valid("647b4b9b6a35ed7eea438f0b"))
}
