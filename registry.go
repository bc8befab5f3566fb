package main

import (
	"crypto/rand"
	"sync"
)

// Registry owns the process-wide mapping of room ID to room state. It is
// a plain injected store rather than a package-level map so tests can
// run isolated instances side by side.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func newRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// Create builds a room with a fresh board and a collision-checked
// random ID.
func (reg *Registry) Create(size int, creator string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room := newRoom(reg.newRoomIDLocked(), size, creator)
	reg.rooms[room.ID] = room

	return room
}

// Get looks up a room by ID.
func (reg *Registry) Get(roomID string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomID]

	return room, ok
}

// Delete drops a room; deleting an unknown ID is a no-op.
func (reg *Registry) Delete(roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delete(reg.rooms, roomID)
}

// Len reports the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms)
}

// IDs snapshots the current room IDs, for the idle reaper.
func (reg *Registry) IDs() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	ids := make([]string, 0, len(reg.rooms))
	for id := range reg.rooms {
		ids = append(ids, id)
	}

	return ids
}

// newRoomIDLocked generates a crypto-random room ID and retries until it
// doesn't collide with a live room. Assumes reg.mu is held.
func (reg *Registry) newRoomIDLocked() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	for {
		buf := make([]byte, 9)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 9)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if _, exists := reg.rooms[id]; !exists {
			return id
		}
	}
}
