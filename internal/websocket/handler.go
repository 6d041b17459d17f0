package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs runs a connection until it closes. The read pump runs on the
// caller's goroutine.
func ServeWs(hub *Hub, conn *websocket.Conn, userID string) {
	client := hub.NewClient(conn, userID)
	hub.Register(client)

	go client.writePump()
	client.readPump()
}
