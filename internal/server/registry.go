package server

import (
	"sync"

	"github.com/fushaoqin-devops/go-chatroom/internal/storage"
)

// Registry owns every chat room, keyed by room ID. Rooms are created lazily
// on first reference and never destroyed at runtime.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for id, creating it if this is the first
// reference. Exactly one Room instance is ever created per id, even under
// concurrent first joins. Room creation never fails.
func (g *Registry) GetOrCreate(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[id]
	if !ok {
		room = newRoom(id)
		g.rooms[id] = room
	}
	return room
}

// Restore installs a room rebuilt from a durable snapshot, with all of its
// users offline. Called at startup before any connection is accepted.
func (g *Registry) Restore(state *storage.RoomState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms[state.ID] = restoreRoom(state)
}

// Len returns the number of known rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
