package relay

import "sync"

// Rooms tracks which connections are interested in which conversation, plus the
// per-conversation broadcast preference. Membership is process memory only; it
// resets on restart. The broadcast flag is last-writer-wins; two sessions racing
// on it can only flip a cosmetic preference.
type Rooms struct {
	mu        sync.RWMutex
	members   map[string]map[Conn]struct{}
	byConn    map[Conn]map[string]struct{}
	broadcast map[string]bool
}

func NewRooms() *Rooms {
	return &Rooms{
		members:   make(map[string]map[Conn]struct{}),
		byConn:    make(map[Conn]map[string]struct{}),
		broadcast: make(map[string]bool),
	}
}

// Join adds the connection to the room. Joining twice is a no-op.
func (r *Rooms) Join(c Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[roomID] == nil {
		r.members[roomID] = make(map[Conn]struct{})
	}
	r.members[roomID][c] = struct{}{}
	if r.byConn[c] == nil {
		r.byConn[c] = make(map[string]struct{})
	}
	r.byConn[c][roomID] = struct{}{}
}

func (r *Rooms) Leave(c Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c, roomID)
}

// LeaveAll removes the connection from every room it joined; called on disconnect.
func (r *Rooms) LeaveAll(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.byConn[c] {
		r.leaveLocked(c, roomID)
	}
}

func (r *Rooms) leaveLocked(c Conn, roomID string) {
	if m, ok := r.members[roomID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(r.members, roomID)
		}
	}
	if rooms, ok := r.byConn[c]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.byConn, c)
		}
	}
}

// SetBroadcast records whether generated output fans out to the whole room or
// only to the sender. Applies to this and subsequent messages until changed.
func (r *Rooms) SetBroadcast(roomID string, broadcast bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast[roomID] = broadcast
}

// BroadcastEnabled defaults to true when the room has no recorded preference.
func (r *Rooms) BroadcastEnabled(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.broadcast[roomID]
	if !ok {
		return true
	}
	return b
}

// Targets resolves the delivery set for one event. With broadcasting on, every
// room member receives it; with it off, only the origin. The origin always
// receives its own events either way.
func (r *Rooms) Targets(roomID string, origin Conn) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.broadcast[roomID]
	if ok && !b {
		return []Conn{origin}
	}

	m := r.members[roomID]
	out := make([]Conn, 0, len(m)+1)
	seen := false
	for c := range m {
		if c == origin {
			seen = true
		}
		out = append(out, c)
	}
	if !seen {
		out = append(out, origin)
	}
	return out
}

// Emit delivers one event to the resolved target set.
func (r *Rooms) Emit(roomID string, origin Conn, event string, payload any) {
	for _, c := range r.Targets(roomID, origin) {
		c.Emit(event, payload)
	}
}

// MemberCount reports current room size.
func (r *Rooms) MemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[roomID])
}
