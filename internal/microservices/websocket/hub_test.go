package websocket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinehub/internal/models"
	"cinehub/internal/titlesync"
)

func startStream(t *testing.T) (*Hub, string, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/stream", WSHandler(hub, nil, func() titlesync.Status {
		return titlesync.Status{Ready: true, Titles: 3}
	}))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream", cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := MessageFromJSON(data)
	require.NoError(t, err)
	return msg
}

func TestStreamSendsHelloThenDeltas(t *testing.T) {
	hub, url, _ := startStream(t)
	conn := dial(t, url)

	hello := readMessage(t, conn)
	assert.Equal(t, TypeHello, hello.Type)
	require.NotNil(t, hello.Status)
	assert.True(t, hello.Status.Ready)
	assert.Equal(t, 3, hello.Status.Titles)

	hub.Publish(titlesync.Delta{Outcome: titlesync.OutcomeIgnored, ID: "skip"})
	hub.Publish(titlesync.Delta{
		Outcome: titlesync.OutcomeInserted,
		ID:      "t1",
		Index:   0,
		Title:   models.Title{ID: "t1", Title: "Night Train", Status: models.StatusCompleted},
	})

	msg := readMessage(t, conn)
	assert.Equal(t, TypeDelta, msg.Type)
	assert.Equal(t, titlesync.OutcomeInserted, msg.Outcome)
	assert.Equal(t, "t1", msg.ID)
	require.NotNil(t, msg.Title)
	assert.Equal(t, "Night Train", msg.Title.Title)

	hub.Publish(titlesync.Delta{Outcome: titlesync.OutcomeReset})
	assert.Equal(t, TypeReset, readMessage(t, conn).Type)
}

func TestStreamFansOutToEveryClient(t *testing.T) {
	hub, url, _ := startStream(t)
	a := dial(t, url)
	b := dial(t, url)
	readMessage(t, a)
	readMessage(t, b)
	assert.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	hub.Publish(titlesync.Delta{Outcome: titlesync.OutcomeRemoved, ID: "t9", Index: 4})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, titlesync.OutcomeRemoved, msg.Outcome)
		assert.Equal(t, 4, msg.Index)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, url, _ := startStream(t)
	conn := dial(t, url)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, url, cancel := startStream(t)
	conn := dial(t, url)
	readMessage(t, conn)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFullQueueSendsReset(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := &Client{ID: "c1", send: make(chan []byte, 2*broadcastBuffer), hub: hub}
	hub.clients[c] = struct{}{}

	// Run has not started, so the queue fills up
	for i := range broadcastBuffer + 5 {
		hub.Publish(titlesync.Delta{Outcome: titlesync.OutcomeInserted, ID: fmt.Sprint("t", i)})
	}
	require.Len(t, hub.overflow, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	deltas := 0
	for done := false; !done; {
		select {
		case data := <-c.send:
			msg, err := MessageFromJSON(data)
			require.NoError(t, err)
			if msg.Type == TypeReset {
				done = true
			} else {
				deltas++
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no reset after the queue overflowed")
		}
	}
	assert.LessOrEqual(t, deltas, broadcastBuffer)

	select {
	case data := <-c.send:
		t.Fatalf("unexpected message after reset: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMessageFromDelta(t *testing.T) {
	for _, o := range []titlesync.Outcome{titlesync.OutcomeIgnored, titlesync.OutcomeDropped} {
		_, ok := MessageFromDelta(titlesync.Delta{Outcome: o})
		assert.False(t, ok, o)
	}

	msg, ok := MessageFromDelta(titlesync.Delta{Outcome: titlesync.OutcomeUpdated, ID: "x", Index: 2})
	require.True(t, ok)
	assert.Equal(t, TypeDelta, msg.Type)
	assert.Equal(t, 2, msg.Index)
}

func TestCheckOrigin(t *testing.T) {
	up := newUpgrader([]string{"https://cinehub.example"})

	req := httptest.NewRequest("GET", "/stream", nil)
	assert.True(t, up.CheckOrigin(req), "no origin header")

	req.Header.Set("Origin", "https://cinehub.example")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, up.CheckOrigin(req))
}
