package client

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"

	ws "cinehub/internal/microservices/websocket"
	"cinehub/internal/titlesync"
)

// ws_client.go = follows the realtime title stream.

// StreamURL turns the API base URL into the stream endpoint.
func StreamURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/titles/stream"
	return u.String(), nil
}

// FollowTitles prints every stream message until interrupted or the server
// closes the connection.
func FollowTitles(apiURL string) error {
	streamURL, err := StreamURL(apiURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(streamURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			msg, err := ws.MessageFromJSON(data)
			if err != nil {
				continue
			}
			PrintMessage(msg)
		}
	}()

	select {
	case <-interrupt:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	}
}

func PrintMessage(msg *ws.Message) {
	switch msg.Type {
	case ws.TypeHello:
		if msg.Status != nil {
			color.Yellow("connected: %d titles, ready=%t stale=%t", msg.Status.Titles, msg.Status.Ready, msg.Status.Stale)
		}

	case ws.TypeReset:
		color.Yellow("collection reloaded")

	case ws.TypeDelta:
		name := msg.ID
		if msg.Title != nil && msg.Title.Title != "" {
			name = msg.Title.Title
		}
		switch msg.Outcome {
		case titlesync.OutcomeInserted:
			color.Green("+ %s (at %d)", name, msg.Index)
		case titlesync.OutcomeUpdated:
			color.Cyan("~ %s", name)
		case titlesync.OutcomeRemoved:
			color.Red("- %s", name)
		}
	}
}
