package status

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/shotnamer/pkg/models"
)

func testServer(t *testing.T) (*Server, *Stats) {
	t.Helper()
	stats := NewStats(5)
	return NewServer("127.0.0.1:0", "test-version", stats), stats
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth_ReturnsVersion(t *testing.T) {
	srv, _ := testServer(t)

	rec := get(t, srv, "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
}

func TestHandleStats(t *testing.T) {
	srv, stats := testServer(t)
	stats.RecordDetected()
	stats.Record(models.Outcome{EventID: "a", Stage: models.StageDone})

	rec := get(t, srv, "/api/stats")

	assert.Equal(t, http.StatusOK, rec.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Detected)
	assert.Equal(t, int64(1), snap.Renamed)
}

func TestHandleRenames(t *testing.T) {
	srv, stats := testServer(t)
	for _, id := range []string{"a", "b", "c"} {
		stats.Record(models.Outcome{EventID: id, Stage: models.StageDone})
	}

	tests := []struct {
		name     string
		target   string
		status   int
		expected []string
	}{
		{"default limit", "/api/renames", http.StatusOK, []string{"c", "b", "a"}},
		{"custom limit", "/api/renames?limit=2", http.StatusOK, []string{"c", "b"}},
		{"limit above capacity", "/api/renames?limit=1000", http.StatusOK, []string{"c", "b", "a"}},
		{"zero limit", "/api/renames?limit=0", http.StatusBadRequest, nil},
		{"non-numeric limit", "/api/renames?limit=abc", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			if tt.expected == nil {
				return
			}

			var body struct {
				Renames []models.Outcome `json:"renames"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			ids := make([]string, 0, len(body.Renames))
			for _, o := range body.Renames {
				ids = append(ids, o.EventID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := testServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/nope").Code)
}

func TestHandleEvents_StreamsOutcomes(t *testing.T) {
	srv, stats := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	waitFor := func(prefix string) string {
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed before %q", prefix)
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	waitFor("event: connected")
	require.Eventually(t, func() bool { return srv.broadcaster.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	stats.Record(models.Outcome{EventID: "evt-1", Stage: models.StageDone, Target: "/d/A_cute_cat.png"})

	waitFor("event: outcome")
	data := waitFor("data: ")
	var got models.Outcome
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &got))
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "/d/A_cute_cat.png", got.Target)
}

func TestServerRun_StopsOnCancel(t *testing.T) {
	srv, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}

func TestBroadcast_NoClients(t *testing.T) {
	b := NewBroadcaster()
	assert.NotPanics(t, func() { b.Broadcast(models.Outcome{EventID: "x"}) })
	assert.Equal(t, 0, b.ClientCount())
}

func TestBroadcast_SlowClientDrops(t *testing.T) {
	b := NewBroadcaster()
	c := b.addClient()
	defer b.removeClient(c)

	for i := 0; i < clientBuffer+5; i++ {
		b.Broadcast(models.Outcome{EventID: "x"})
	}
	assert.Len(t, c.send, clientBuffer)
}
