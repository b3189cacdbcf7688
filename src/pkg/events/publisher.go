package events

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type EventType string

const (
	EventCreated EventType = "created"
	EventRemoved EventType = "removed"
)

// Event reports a change in the upload directory.
type Event struct {
	Type      EventType `json:"type"`
	Filename  string    `json:"filename"`
	Timestamp int64     `json:"timestamp"`
}

const (
	subscriberQueue = 100
	writeWait       = 10 * time.Second
	pingPeriod      = 30 * time.Second
)

var ErrPublisherClosed = errors.New("publisher is closed")

type subscriber struct {
	ch chan Event
}

// Publisher fans events out to websocket subscribers. Slow subscribers lose
// events instead of blocking the publisher.
type Publisher struct {
	upgrader    websocket.Upgrader
	done        atomic.Bool
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

func NewPublisher() *Publisher {
	return &Publisher{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subscribers: make(map[*subscriber]struct{}),
	}
}

func (p *Publisher) Publish(event Event) error {
	if p.done.Load() {
		return ErrPublisherClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for sub := range p.subscribers {
		select {
		case sub.ch <- event:
		default:
			slog.Warn("event queue is full, dropping event", "type", event.Type, "filename", event.Filename)
		}
	}
	return nil
}

func (p *Publisher) subscribe() (*subscriber, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done.Load() {
		return nil, false
	}
	sub := &subscriber{ch: make(chan Event, subscriberQueue)}
	p.subscribers[sub] = struct{}{}
	return sub, true
}

func (p *Publisher) unsubscribe(sub *subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[sub]; ok {
		delete(p.subscribers, sub)
		close(sub.ch)
	}
}

// Subscribers reports the number of connected clients.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// Close disconnects every subscriber and rejects further events.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done.Swap(true) {
		return
	}
	for sub := range p.subscribers {
		delete(p.subscribers, sub)
		close(sub.ch)
	}
}

// ServeHTTP upgrades the request and streams events as JSON text frames.
func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, upgradeErr := p.upgrader.Upgrade(w, r, nil)
	if upgradeErr != nil {
		slog.Debug("websocket upgrade failed", "error", upgradeErr)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	sub, ok := p.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return
	}
	defer p.unsubscribe(sub)

	// Clients only listen; reading drains control frames and notices disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-sub.ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
