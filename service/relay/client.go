package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Role is fixed once at join and never re-derived from payload shape.
type Role int8

const (
	RoleVisitor Role = iota
	RoleAgent
)

func (r Role) String() string {
	if r == RoleAgent {
		return "agent"
	}
	return "visitor"
}

// Session states. A socket starts connecting, becomes joined after a valid
// join frame and ends closed; no frame is processed after closed.
const (
	stateConnecting int32 = iota
	stateJoined
	stateClosed
)

// Client is one connected socket session (visitor or agent).
//
// Identity fields are written only by the session's own read goroutine during
// join handling; other goroutines touch nothing but the Send queue.
type Client struct {
	ConnID string // unique within the local relay node
	ID     string // client identity: agentId, visitorId or synthesized
	Role   Role

	CompanyID      string
	ConversationID string
	Name           string

	WS      *websocket.Conn
	Send    chan []byte // outbound queue, drained by a single writer goroutine
	Limiter *rate.Limiter

	done      chan struct{} // closed on teardown, stops the writer
	state     atomic.Int32
	joinTimer *time.Timer
	closeOnce sync.Once
}

func NewClient(connID string, ws *websocket.Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Client{
		ConnID: connID,
		WS:     ws,
		Send:   make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) Joined() bool { return c.state.Load() == stateJoined }
func (c *Client) Closed() bool { return c.state.Load() == stateClosed }

// MarkJoined flips connecting -> joined and stops the join timer. Returns
// false if the session was already closed.
func (c *Client) MarkJoined() bool {
	if !c.state.CompareAndSwap(stateConnecting, stateJoined) {
		return c.Joined()
	}
	if c.joinTimer != nil {
		c.joinTimer.Stop()
	}
	return true
}

// markClosed is the single entry into the terminal state; it reports whether
// this call performed the transition.
func (c *Client) markClosed() bool {
	if c.state.Swap(stateClosed) == stateClosed {
		return false
	}
	if c.joinTimer != nil {
		c.joinTimer.Stop()
	}
	close(c.done)
	return true
}

// expire closes a session that never joined, handing lastFrame to the writer
// so it goes out ahead of the close frame. No-op once the session joined or
// closed through another path.
func (c *Client) expire(lastFrame []byte) bool {
	if !c.state.CompareAndSwap(stateConnecting, stateClosed) {
		return false
	}
	if lastFrame != nil {
		select {
		case c.Send <- lastFrame:
		default:
		}
	}
	close(c.done)
	return true
}

// Enqueue pushes a payload onto the send queue without blocking. A full queue
// means a slow client; the frame is dropped and the writer keeps going.
func (c *Client) Enqueue(payload []byte) bool {
	if c.Closed() {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// CloseWS closes the underlying socket once. Safe from any goroutine; the
// read loop notices and runs the normal teardown.
func (c *Client) CloseWS() {
	c.closeOnce.Do(func() {
		if c.WS != nil {
			_ = c.WS.Close()
		}
	})
}
