package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateAndGet(t *testing.T) {
	reg := newRegistry()

	room := reg.Create(4, "creator-1")

	require.NotNil(t, room)
	assert.Len(t, room.ID, 9)
	assert.Equal(t, 4, room.Size)
	assert.Equal(t, "creator-1", room.Creator)
	assert.Len(t, room.Board, 16)

	got, ok := reg.Get(room.ID)
	require.True(t, ok)
	assert.Same(t, room, got)

	_, ok = reg.Get("no-such-room")
	assert.False(t, ok)
}

func TestRegistryUniqueIDs(t *testing.T) {
	reg := newRegistry()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		room := reg.Create(2, "creator")
		assert.False(t, seen[room.ID], "duplicate room ID %s", room.ID)
		seen[room.ID] = true
	}

	assert.Equal(t, 100, reg.Len())
}

func TestRegistryDelete(t *testing.T) {
	reg := newRegistry()

	room := reg.Create(2, "creator")
	require.Equal(t, 1, reg.Len())

	reg.Delete(room.ID)

	_, ok := reg.Get(room.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())

	// Deleting again is a no-op.
	reg.Delete(room.ID)
	assert.Equal(t, 0, reg.Len())
}
