package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"

	"github.com/gorilla/websocket"
)

// Conn is the part of *websocket.Conn the hub relies on.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Client is one live connection. Frames are queued on a bounded buffer and
// written by a dedicated goroutine; a full buffer drops the frame.
type Client struct {
	id       string
	identity entity.Identity
	conn     Conn

	send         chan []byte
	done         chan struct{}
	writeTimeout time.Duration

	state     atomic.Int32
	closeOnce sync.Once
}

func newClient(id string, identity entity.Identity, conn Conn, buffer int, writeTimeout time.Duration) *Client {
	c := &Client{
		id:           id,
		identity:     identity,
		conn:         conn,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Client) ID() string                { return c.id }
func (c *Client) Identity() entity.Identity { return c.identity }
func (c *Client) State() State              { return State(c.state.Load()) }

// Done is closed once the client reaches StateClosed.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) open() {
	if c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		go c.writePump()
	}
}

// enqueue never blocks.
func (c *Client) enqueue(frame []byte) bool {
	if c.State() != StateOpen {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if c.writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		_ = c.conn.Close()
	})
}
