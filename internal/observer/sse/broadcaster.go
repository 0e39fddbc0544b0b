// Package sse streams live session events to observer dashboards.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// SendTimeout bounds how long a broadcast waits on one client before the
// client is considered dead.
const SendTimeout = 2 * time.Second

type client struct {
	id   string
	ch   chan []byte
	done chan struct{}
}

// Broadcaster fans session events out to every connected observer.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[string]*client
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*client)}
}

func (b *Broadcaster) add() *client {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	c := &client{
		id:   fmt.Sprintf("observer-%d", b.nextID),
		ch:   make(chan []byte, 16),
		done: make(chan struct{}),
	}
	b.clients[c.id] = c
	log.Debug().Str("client", c.id).Int("total", len(b.clients)).Msg("Observer connected")
	return c
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c.id]
	delete(b.clients, c.id)
	total := len(b.clients)
	b.mu.Unlock()

	if ok {
		close(c.done)
	}
	log.Debug().Str("client", c.id).Int("total", total).Msg("Observer disconnected")
}

// Broadcast serializes the event and queues it for every client. A client
// whose queue stays full past the send timeout is dropped.
func (b *Broadcaster) Broadcast(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal observer event")
		return
	}

	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		select {
		case c.ch <- payload:
		case <-c.done:
		case <-time.After(SendTimeout):
			log.Warn().Str("client", c.id).Msg("Observer not draining events, dropping")
			b.remove(c)
		}
	}
}

// ClientCount returns the number of connected observers.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// ServeHTTP streams events to one observer until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	c := b.add()
	defer b.remove(c)

	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"client\":%q}\n\n", c.id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case payload := <-c.ch:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
