package broadcast

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// State is the lifecycle state of a connection.
type State int

// Lifecycle states. A failed admission goes straight from Connecting to Closed.
const (
	StateConnecting State = iota
	StateAuthenticated
	StateRoomBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateRoomBound:
		return "room_bound"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the socket a connection writes to. *websocket.Conn satisfies it.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn is one live client connection. Outbound frames go through a bounded
// queue drained by a single writer goroutine, so a slow socket never blocks
// the publisher. A connection whose queue overflows is closed.
type Conn struct {
	id        string
	transport Transport
	send      chan []byte
	done      chan struct{}
	written   chan struct{}
	closeOnce sync.Once
	slowOnce  sync.Once
	// closeFrame is written by the writer before it closes the transport.
	closeFrame []byte
	closeErr   error
	onClose    func(*Conn)
	registry   *Registry

	mu        sync.Mutex
	state     State
	userID    string
	email     string
	projectID string
	rooms     map[RoomKey]struct{}
}

func newConn(transport Transport, registry *Registry, sendBuffer int, onClose func(*Conn)) *Conn {
	c := &Conn{
		id:        uuid.New().String(),
		transport: transport,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		written:   make(chan struct{}),
		onClose:   onClose,
		registry:  registry,
		state:     StateConnecting,
		rooms:     make(map[RoomKey]struct{}),
	}
	go c.writeLoop()
	return c
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the authenticated user, or "" before authentication.
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// ProjectID returns the project the connection was admitted to.
func (c *Conn) ProjectID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectID
}

// Rooms returns the rooms the connection currently belongs to.
func (c *Conn) Rooms() []RoomKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]RoomKey, 0, len(c.rooms))
	for k := range c.rooms {
		keys = append(keys, k)
	}
	return keys
}

// Done is closed once the writer has stopped and the transport is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.written
}

func (c *Conn) authenticate(userID, email, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrConnClosed
	}
	c.state = StateAuthenticated
	c.userID = userID
	c.email = email
	c.projectID = projectID
	return nil
}

// bind records membership of key. Called with the room lock held.
func (c *Conn) bind(key RoomKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrConnClosed
	case StateConnecting:
		return ErrConnNotAuthenticated
	}
	if _, ok := c.rooms[key]; ok {
		return nil
	}
	if !key.IsDashboard() {
		for existing := range c.rooms {
			if !existing.IsDashboard() {
				return ErrAlreadyBound
			}
		}
	}

	c.rooms[key] = struct{}{}
	if !key.IsDashboard() {
		c.state = StateRoomBound
	}
	return nil
}

// unbind forgets membership of key. Called with the room lock held.
func (c *Conn) unbind(key RoomKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, key)
	if c.state == StateRoomBound && !key.IsDashboard() {
		c.state = StateAuthenticated
	}
}

// enqueue queues a frame without blocking. It reports whether the frame was
// accepted. Called with a room lock held.
func (c *Conn) enqueue(frame []byte) bool {
	c.mu.Lock()
	closed := c.state == StateClosed
	c.mu.Unlock()
	if closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		// The close path takes room locks, so it cannot run here.
		c.slowOnce.Do(func() { go c.shutdown(nil) })
		return false
	}
}

// Close tears the connection down. Room cleanup has finished when Close
// returns. Calling Close again is a no-op.
func (c *Conn) Close() error {
	c.shutdown(nil)
	<-c.written
	return c.closeErr
}

// CloseWithReason sends a close frame carrying reason, then closes.
func (c *Conn) CloseWithReason(code int, reason string) error {
	c.shutdown(websocket.FormatCloseMessage(code, reason))
	<-c.written
	return c.closeErr
}

func (c *Conn) shutdown(frame []byte) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		rooms := c.rooms
		c.rooms = make(map[RoomKey]struct{})
		c.mu.Unlock()

		for key := range rooms {
			c.registry.remove(key, c)
		}

		c.closeFrame = frame
		if frame == nil {
			// Unblocks a writer stuck on a dead peer.
			c.closeErr = c.transport.Close()
		}
		close(c.done)

		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

func (c *Conn) writeLoop() {
	defer close(c.written)

	for {
		select {
		case <-c.done:
			c.finish()
			return
		default:
		}

		select {
		case frame := <-c.send:
			if err := c.transport.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.shutdown(nil)
			}
		case <-c.done:
			c.finish()
			return
		}
	}
}

func (c *Conn) finish() {
	if c.closeFrame == nil {
		return
	}
	_ = c.transport.WriteMessage(websocket.CloseMessage, c.closeFrame)
	c.closeErr = c.transport.Close()
}
