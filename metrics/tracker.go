package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"streamedit/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	EventShown    = "inline_edit_hunks_shown"
	EventAccepted = "inline_edit_hunks_accepted"
	EventRejected = "inline_edit_hunks_rejected"
)

// Sends beyond the limit are dropped, never queued
const (
	sendsPerSecond = 5
	sendBurst      = 20
)

type Event struct {
	EventType  string `json:"event_type"`
	SessionID  string `json:"session_id"`
	Hunks      int    `json:"hunks"`
	EditorInfo string `json:"editor_info"`
	DeviceID   string `json:"device_id"`
	Timestamp  int64  `json:"timestamp"`
}

// Tracker posts hunk resolution events to a metrics endpoint.
// A Tracker with an empty URL records nothing.
type Tracker struct {
	url        string
	apiKey     string
	editorInfo string
	deviceID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	wg         sync.WaitGroup
}

func NewTracker(url, apiKey, editorInfo, dataDir string) *Tracker {
	return &Tracker{
		url:        url,
		apiKey:     apiKey,
		editorInfo: editorInfo,
		deviceID:   loadOrCreateDeviceID(dataDir),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(sendsPerSecond), sendBurst),
	}
}

func (t *Tracker) DeviceID() string { return t.deviceID }

func (t *Tracker) TrackShown(sessionID string, hunks int) {
	t.send(EventShown, sessionID, hunks)
}

func (t *Tracker) TrackAccepted(sessionID string, hunks int) {
	t.send(EventAccepted, sessionID, hunks)
}

func (t *Tracker) TrackRejected(sessionID string, hunks int) {
	t.send(EventRejected, sessionID, hunks)
}

// Wait blocks until in-flight sends finish
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) send(eventType, sessionID string, hunks int) {
	if t.url == "" || hunks <= 0 {
		return
	}
	if !t.limiter.Allow() {
		logger.Debug("metrics: rate limited, dropping %s", eventType)
		return
	}

	ev := &Event{
		EventType:  eventType,
		SessionID:  sessionID,
		Hunks:      hunks,
		EditorInfo: t.editorInfo,
		DeviceID:   t.deviceID,
		Timestamp:  time.Now().UnixMilli(),
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		body, err := json.Marshal(ev)
		if err != nil {
			logger.Debug("metrics: marshal error: %v", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", t.url, bytes.NewReader(body))
		if err != nil {
			logger.Debug("metrics: create request error: %v", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if t.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
		}

		resp, err := t.httpClient.Do(httpReq)
		if err != nil {
			logger.Debug("metrics: send error: %v", err)
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 400 {
			logger.Debug("metrics: server returned %d for %s", resp.StatusCode, ev.EventType)
		} else {
			logger.Debug("metrics: sent %s (session=%s, hunks=%d)", ev.EventType, ev.SessionID, ev.Hunks)
		}
	}()
}

func loadOrCreateDeviceID(dataDir string) string {
	if dataDir == "" {
		return uuid.NewString()
	}

	idPath := filepath.Join(dataDir, "device_id")

	data, err := os.ReadFile(idPath)
	if err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("metrics: could not create data dir %s: %v", dataDir, err)
		return id
	}
	if err := os.WriteFile(idPath, []byte(id), 0644); err != nil {
		logger.Warn("metrics: could not write device_id: %v", err)
	}
	return id
}
