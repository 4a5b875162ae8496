package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/shotnamer/pkg/models"
)

// BroadcasterSuite is a test suite for Broadcaster operations.
type BroadcasterSuite struct {
	suite.Suite
	broadcaster *Broadcaster
}

func (s *BroadcasterSuite) SetupTest() {
	s.broadcaster = NewBroadcaster()
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

// TestNewBroadcaster tests broadcaster creation.
func (s *BroadcasterSuite) TestNewBroadcaster() {
	s.NotNil(s.broadcaster.clients)
	s.Equal(0, s.broadcaster.ClientCount())
}

// TestAddRemoveClient tests client bookkeeping.
func (s *BroadcasterSuite) TestAddRemoveClient() {
	a := s.broadcaster.addClient()
	b := s.broadcaster.addClient()
	s.NotEqual(a.id, b.id)
	s.Equal(2, s.broadcaster.ClientCount())

	s.broadcaster.removeClient(a)
	s.Equal(1, s.broadcaster.ClientCount())
}

// TestBroadcast tests that every client receives the outcome.
func (s *BroadcasterSuite) TestBroadcast() {
	a := s.broadcaster.addClient()
	b := s.broadcaster.addClient()

	s.broadcaster.Broadcast(models.Outcome{Source: "/shots/a.png", Stage: models.StageDone})

	for _, c := range []*client{a, b} {
		select {
		case data := <-c.send:
			s.Contains(string(data), `"/shots/a.png"`)
		default:
			s.Fail("client did not receive outcome", c.id)
		}
	}
}

// TestBroadcastNoClients tests broadcasting with no clients.
func (s *BroadcasterSuite) TestBroadcastNoClients() {
	s.NotPanics(func() {
		s.broadcaster.Broadcast(models.Outcome{})
	})
}

// TestBroadcastSlowClient tests that a full client buffer never blocks.
func (s *BroadcasterSuite) TestBroadcastSlowClient() {
	c := s.broadcaster.addClient()

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*2; i++ {
			s.broadcaster.Broadcast(models.Outcome{Source: "x.png"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.FailNow("Broadcast blocked on a slow client")
	}
	s.Len(c.send, clientBuffer)
}

// flushRecorder is a ResponseWriter and Flusher safe for concurrent reads.
type flushRecorder struct {
	header http.Header
	mu     sync.Mutex
	body   strings.Builder
}

func (f *flushRecorder) Header() http.Header { return f.header }
func (f *flushRecorder) WriteHeader(int)     {}
func (f *flushRecorder) Flush()              {}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body.Write(p)
}

func (f *flushRecorder) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body.String()
}

// TestHandleSSE tests the event stream framing.
func (s *BroadcasterSuite) TestHandleSSE() {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &flushRecorder{header: make(http.Header)}

	finished := make(chan struct{})
	go func() {
		s.broadcaster.HandleSSE(w, req)
		close(finished)
	}()

	s.Eventually(func() bool { return s.broadcaster.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	s.broadcaster.Broadcast(models.Outcome{Source: "/shots/b.png"})
	s.Eventually(func() bool {
		return strings.Contains(w.String(), "event: outcome\ndata: ")
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-finished

	s.Equal("text/event-stream", w.Header().Get("Content-Type"))
	s.True(strings.HasPrefix(w.String(), "event: connected\n"))
	s.Contains(w.String(), `"/shots/b.png"`)
	s.Equal(0, s.broadcaster.ClientCount())
}

// TestHandleSSE_NoFlusher tests writers that cannot stream.
func (s *BroadcasterSuite) TestHandleSSE_NoFlusher() {
	var w nonFlusher
	w.header = make(http.Header)
	s.broadcaster.HandleSSE(&w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	s.Equal(http.StatusInternalServerError, w.status)
}

type nonFlusher struct {
	header http.Header
	status int
}

func (n *nonFlusher) Header() http.Header         { return n.header }
func (n *nonFlusher) Write(p []byte) (int, error) { return len(p), nil }
func (n *nonFlusher) WriteHeader(code int)        { n.status = code }
