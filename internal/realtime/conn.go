package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const pingPeriod = 30 * time.Second

// ErrConnectionClosed is returned by Send after the connection shut down.
var ErrConnectionClosed = errors.New("connection closed")

// Sender is the outbound half of a client connection. The router and
// presence registry address clients only through this interface.
type Sender interface {
	ID() string
	Send(payload []byte) error
}

// socket is the subset of the websocket connection the write loop needs.
type socket interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection wraps a websocket and serializes outbound writes through a
// buffered channel. Safe for concurrent use.
type Connection struct {
	id string

	ws        socket
	send      chan []byte
	once      sync.Once
	closed    chan struct{}
	writeWait time.Duration
}

// NewConnection constructs a Connection over the upgraded socket.
func NewConnection(ws socket, bufferSize int, writeTimeout time.Duration) *Connection {
	if bufferSize <= 0 {
		bufferSize = 128
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Connection{
		id:        uuid.NewString(),
		ws:        ws,
		send:      make(chan []byte, bufferSize),
		closed:    make(chan struct{}),
		writeWait: writeTimeout,
	}
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string {
	return c.id
}

// Start launches the write loop. Call exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. A slow client whose buffer fills is
// closed to keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(c.writeWait)
		_ = c.ws.SetWriteDeadline(deadline)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
