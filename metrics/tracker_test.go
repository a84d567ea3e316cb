package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu     sync.Mutex
	events []Event
	auth   []string
}

func newSink(t *testing.T) (*sink, *httptest.Server) {
	s := &sink{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.events = append(s.events, ev)
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func TestTracker_PostsEvents(t *testing.T) {
	s, srv := newSink(t)
	tr := NewTracker(srv.URL, "secret", "nvim 0.10", "")

	tr.TrackShown("sess-1", 3)
	tr.TrackAccepted("sess-1", 2)
	tr.TrackRejected("sess-1", 1)
	tr.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.events, 3)

	byType := map[string]Event{}
	for _, ev := range s.events {
		byType[ev.EventType] = ev
	}
	assert.Equal(t, 3, byType[EventShown].Hunks)
	assert.Equal(t, 2, byType[EventAccepted].Hunks)
	assert.Equal(t, 1, byType[EventRejected].Hunks)
	assert.Equal(t, "sess-1", byType[EventShown].SessionID)
	assert.Equal(t, "nvim 0.10", byType[EventShown].EditorInfo)
	assert.Equal(t, tr.DeviceID(), byType[EventShown].DeviceID)
	assert.Equal(t, "Bearer secret", s.auth[0])
}

func TestTracker_SkipsZeroHunks(t *testing.T) {
	s, srv := newSink(t)
	tr := NewTracker(srv.URL, "", "", "")

	tr.TrackAccepted("sess", 0)
	tr.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.events)
}

func TestTracker_DisabledWithoutURL(t *testing.T) {
	tr := NewTracker("", "", "", "")

	// must not panic or spawn requests
	tr.TrackShown("sess", 1)
	tr.Wait()
}

func TestTracker_RateLimited(t *testing.T) {
	s, srv := newSink(t)
	tr := NewTracker(srv.URL, "", "", "")

	for i := 0; i < sendBurst+10; i++ {
		tr.TrackShown("sess", 1)
	}
	tr.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.LessOrEqual(t, len(s.events), sendBurst+5)
	assert.GreaterOrEqual(t, len(s.events), sendBurst)
}

func TestDeviceID_Persisted(t *testing.T) {
	dir := t.TempDir()

	first := loadOrCreateDeviceID(dir)
	_, err := uuid.Parse(first)
	require.NoError(t, err)

	second := loadOrCreateDeviceID(dir)
	assert.Equal(t, first, second)
}

func TestDeviceID_ReplacesGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "device_id"), []byte("not-a-uuid"), 0644))

	id := loadOrCreateDeviceID(dir)

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "device_id"))
	require.NoError(t, err)
	assert.Equal(t, id, string(data))
}
