package websocket

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cinehub/internal/titlesync"
)

// StatusFunc reports the store status sent in the hello frame.
type StatusFunc func() titlesync.Status

func newUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no Origin
			if origin == "" || len(origins) == 0 {
				return true
			}
			return slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}

// WSHandler upgrades GET /api/titles/stream. The stream is public, like the
// catalog it mirrors.
func WSHandler(hub *Hub, origins []string, status StatusFunc) gin.HandlerFunc {
	upgrader := newUpgrader(origins)
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response
			hub.logger.Debug("upgrade_failed", "error", err)
			return
		}

		client := NewClient(uuid.NewString(), conn, hub)
		if status != nil {
			if hello, err := NewHelloMessage(status()).ToJSON(); err == nil {
				client.send <- hello
			}
		}

		if !hub.join(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
