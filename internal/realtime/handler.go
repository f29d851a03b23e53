package realtime

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const readTimeout = 60 * time.Second

// UpgradeGuard rejects plain HTTP requests on the websocket route.
func UpgradeGuard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handler returns the websocket endpoint. Each upgraded socket gets a
// Connection registered with presence for the life of the read loop; frames
// are handed to Dispatch one at a time.
func (r *Router) Handler(bufferSize int, writeTimeout time.Duration) fiber.Handler {
	return websocket.New(func(ws *websocket.Conn) {
		conn := NewConnection(ws, bufferSize, writeTimeout)
		r.presence.Register(conn)
		conn.Start()
		defer func() {
			r.presence.Unregister(conn.ID())
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(readTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			r.Dispatch(context.Background(), conn, data)
		}
	})
}

// Shutdown closes every live connection.
func (r *Router) Shutdown() {
	for _, sender := range r.presence.CloseAll() {
		if conn, ok := sender.(*Connection); ok {
			conn.Close(websocket.CloseGoingAway, "server shutdown")
		}
	}
}
