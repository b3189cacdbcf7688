package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestPublisherStreamsEvents(t *testing.T) {
	publisher := NewPublisher()
	server := httptest.NewServer(publisher)
	defer server.Close()

	first := dial(t, server)
	second := dial(t, server)
	require.Eventually(t, func() bool { return publisher.Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	sent := Event{Type: EventCreated, Filename: "a.png", Timestamp: 42}
	require.NoError(t, publisher.Publish(sent))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var received Event
		require.NoError(t, conn.ReadJSON(&received))
		assert.Equal(t, sent, received)
	}
}

func TestPublisherDropsDisconnectedSubscribers(t *testing.T) {
	publisher := NewPublisher()
	server := httptest.NewServer(publisher)
	defer server.Close()

	conn := dial(t, server)
	require.Eventually(t, func() bool { return publisher.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return publisher.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPublisherClose(t *testing.T) {
	publisher := NewPublisher()
	server := httptest.NewServer(publisher)
	defer server.Close()

	conn := dial(t, server)
	require.Eventually(t, func() bool { return publisher.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	publisher.Close()
	publisher.Close()
	assert.ErrorIs(t, publisher.Publish(Event{Type: EventRemoved}), ErrPublisherClosed)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	publisher := NewPublisher()
	assert.NoError(t, publisher.Publish(Event{Type: EventCreated, Filename: "a.png"}))
}
