package broadcast

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/collab-workspace/domain/apperr"
)

const (
	projectPrefix   = "project:"
	dashboardPrefix = "dashboard:"
)

var (
	// ErrConnClosed is returned when a closed connection tries to join a room.
	ErrConnClosed = errors.New("connection is closed")
	// ErrConnNotAuthenticated is returned when a connection joins a room
	// before it has been admitted.
	ErrConnNotAuthenticated = fmt.Errorf("%w: connection is not authenticated", apperr.ErrAuthentication)
	// ErrAlreadyBound is returned when a connection already bound to one
	// project room tries to join another.
	ErrAlreadyBound = fmt.Errorf("%w: connection is already bound to another project", apperr.ErrAuthorizationTarget)
)

// RoomKey identifies a broadcast group. Project rooms and dashboard channels
// live in separate namespaces.
type RoomKey string

// ProjectRoom returns the key of a project's room.
func ProjectRoom(projectID string) RoomKey {
	return RoomKey(projectPrefix + projectID)
}

// DashboardRoom returns the key of a user's dashboard channel.
func DashboardRoom(userID string) RoomKey {
	return RoomKey(dashboardPrefix + userID)
}

// IsDashboard reports whether k names a dashboard channel.
func (k RoomKey) IsDashboard() bool {
	return strings.HasPrefix(string(k), dashboardPrefix)
}

type room struct {
	mu      sync.Mutex
	members map[*Conn]struct{}
	// dead is set once the room has been unlinked from the registry.
	dead bool
}

// Registry maps room keys to their live connections. Each room has its own
// lock; the registry lock only guards the key lookup.
//
// Lock order is room.mu then Conn.mu. The registry lock is never held while
// a room lock is taken.
type Registry struct {
	mu    sync.RWMutex
	rooms map[RoomKey]*room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[RoomKey]*room)}
}

func (reg *Registry) lookup(key RoomKey) *room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[key]
}

func (reg *Registry) getOrCreate(key RoomKey) *room {
	if r := reg.lookup(key); r != nil {
		return r
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[key]; ok {
		return r
	}
	r := &room{members: make(map[*Conn]struct{})}
	reg.rooms[key] = r
	return r
}

// unlink removes r from the map if it is still the room registered for key.
func (reg *Registry) unlink(key RoomKey, r *room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rooms[key] == r {
		delete(reg.rooms, key)
	}
}

// Join adds c to the room. Joining a room twice is a no-op. A closed
// connection is never added.
func (reg *Registry) Join(key RoomKey, c *Conn) error {
	for {
		r := reg.getOrCreate(key)

		r.mu.Lock()
		if r.dead {
			// Emptied and unlinked between lookup and lock.
			r.mu.Unlock()
			continue
		}

		err := c.bind(key)
		if err == nil {
			r.members[c] = struct{}{}
		}
		empty := len(r.members) == 0
		if empty {
			r.dead = true
		}
		r.mu.Unlock()

		if empty {
			reg.unlink(key, r)
		}
		return err
	}
}

// JoinDashboard adds c to the dashboard channel of userID.
func (reg *Registry) JoinDashboard(userID string, c *Conn) error {
	return reg.Join(DashboardRoom(userID), c)
}

// Leave removes c from the room. Leaving a room c is not in is a no-op.
func (reg *Registry) Leave(key RoomKey, c *Conn) {
	r := reg.lookup(key)
	if r == nil {
		return
	}

	r.mu.Lock()
	if _, ok := r.members[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, c)
	c.unbind(key)
	empty := !r.dead && len(r.members) == 0
	if empty {
		r.dead = true
	}
	r.mu.Unlock()

	if empty {
		reg.unlink(key, r)
	}
}

// remove drops c from the room without touching c's own bookkeeping. It is
// used during close, after c has already released its room set.
func (reg *Registry) remove(key RoomKey, c *Conn) {
	r := reg.lookup(key)
	if r == nil {
		return
	}

	r.mu.Lock()
	delete(r.members, c)
	empty := !r.dead && len(r.members) == 0
	if empty {
		r.dead = true
	}
	r.mu.Unlock()

	if empty {
		reg.unlink(key, r)
	}
}

// RemoveAll closes c, which removes it from every room it belongs to.
func (reg *Registry) RemoveAll(c *Conn) error {
	return c.Close()
}

// MembersOf returns a snapshot of the connections in the room.
func (reg *Registry) MembersOf(key RoomKey) []*Conn {
	r := reg.lookup(key)
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	members := make([]*Conn, 0, len(r.members))
	for c := range r.members {
		members = append(members, c)
	}
	return members
}

// forEachMember calls fn for every member while holding the room lock, so
// concurrent calls on the same room are serialized.
func (reg *Registry) forEachMember(key RoomKey, fn func(*Conn)) int {
	r := reg.lookup(key)
	if r == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.members {
		fn(c)
	}
	return len(r.members)
}

// RoomCount returns the number of non-empty rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
