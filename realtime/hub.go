package realtime

import "sync"

// Hub is the room membership registry shared by all connections.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	conns map[*Conn]map[string]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Conn]struct{}),
		conns: make(map[*Conn]map[string]struct{}),
	}
}

func (h *Hub) join(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}

	joined, ok := h.conns[c]
	if !ok {
		joined = make(map[string]struct{})
		h.conns[c] = joined
	}
	joined[room] = struct{}{}
}

func (h *Hub) leave(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Conn, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.conns[c]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(h.conns, c)
		}
	}
}

// removeAll drops every membership of c and returns how many were removed.
func (h *Hub) removeAll(c *Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined := h.conns[c]
	n := len(joined)
	for room := range joined {
		h.leaveLocked(c, room)
	}
	delete(h.conns, c)
	return n
}

// Members returns the number of connections in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// InRoom reports whether c is a member of room.
func (h *Hub) InRoom(c *Conn, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c]
	return ok
}

// Rooms returns how many rooms c belongs to.
func (h *Hub) Rooms(c *Conn) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[c])
}

// broadcast sends ev to every member of room. Sends happen outside the lock.
func (h *Hub) broadcast(room string, ev Event) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	ev.Room = room
	delivered := 0
	for _, c := range targets {
		if err := c.out.Send(ev); err == nil {
			delivered++
		}
	}
	return delivered
}
