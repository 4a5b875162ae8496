package status

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/shotnamer/pkg/models"
)

// clientBuffer is how many outcomes a slow SSE client may lag behind before
// further outcomes are dropped for it.
const clientBuffer = 16

// client is one connected SSE stream.
type client struct {
	id   string
	send chan []byte
}

// Broadcaster fans rename outcomes out to Server-Sent Events clients.
type Broadcaster struct {
	clients map[string]*client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*client),
	}
}

func (b *Broadcaster) addClient() *client {
	b.mu.Lock()
	b.nextID++
	c := &client{
		id:   fmt.Sprintf("client-%d", b.nextID),
		send: make(chan []byte, clientBuffer),
	}
	b.clients[c.id] = c
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", c.id).Int("totalClients", count).Msg("SSE client connected")
	return c
}

func (b *Broadcaster) removeClient(c *client) {
	b.mu.Lock()
	delete(b.clients, c.id)
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", c.id).Int("totalClients", count).Msg("SSE client disconnected")
}

// Broadcast queues an outcome for every connected client without blocking.
func (b *Broadcaster) Broadcast(outcome models.Outcome) {
	data, err := json.Marshal(outcome)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE data")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, c := range b.clients {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("clientId", c.id).Msg("SSE client too slow, outcome dropped")
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE streams outcomes to one client until it disconnects.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := b.addClient()
	defer b.removeClient(c)

	fmt.Fprintf(w, "event: connected\ndata: {\"clientId\":%q}\n\n", c.id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-c.send:
			if _, err := fmt.Fprintf(w, "event: outcome\ndata: %s\n\n", data); err != nil {
				log.Debug().Err(err).Str("clientId", c.id).Msg("SSE write failed")
				return
			}
			flusher.Flush()
		}
	}
}
