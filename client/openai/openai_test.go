package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseChunk(content, finish string) string {
	chunk := map[string]any{
		"id": "c1",
		"choices": []map[string]any{{
			"index":         0,
			"delta":         map[string]any{"content": content},
			"finish_reason": finish,
		}},
	}
	b, _ := json.Marshal(chunk)
	return "data: " + string(b) + "\n\n"
}

func TestStreamChat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method, "HTTP method")
		assert.Equal(t, DefaultPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream, "Stream should be true")
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, sseChunk("Hello", ""))
		fmt.Fprint(w, sseChunk(", <world>", ""))
		fmt.Fprint(w, sseChunk("", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, sseChunk("ignored", ""))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret", 0)

	var deltas []string
	result, err := client.StreamChat(context.Background(), &ChatRequest{
		Model: "test-model",
		Messages: []Message{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "<b>hi</b>"},
		},
	}, func(d string) { deltas = append(deltas, d) })

	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", ", <world>"}, deltas)
	assert.Equal(t, "Hello, <world>", result.Text)
	assert.Equal(t, "stop", result.FinishReason)
}

func TestStreamChat_NoHTMLEscaping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "<<<<<<< SEARCH")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	_, err := client.StreamChat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "<<<<<<< SEARCH"}},
	}, nil)
	require.NoError(t, err)
}

func TestStreamChat_Compressed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "br", r.Header.Get("Content-Encoding"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(brotli.NewReader(r.Body)).Decode(&req))
		assert.Equal(t, "compressed", req.Messages[0].Content)

		fmt.Fprint(w, sseChunk("ok", "stop"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	client.Compress = true

	result, err := client.StreamChat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "compressed"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
}

func TestStreamChat_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("server error"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	_, err := client.StreamChat(context.Background(), &ChatRequest{}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "server error")
}

func TestStreamChat_ErrorChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseChunk("partial", ""))
		fmt.Fprint(w, `data: {"error": {"message": "rate limited"}}`+"\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	result, err := client.StreamChat(context.Background(), &ChatRequest{}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, "partial", result.Text)
}

func TestStreamChat_Canceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseChunk("first", ""))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(server.URL, "", 0)

	_, err := client.StreamChat(ctx, &ChatRequest{}, func(string) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadStream_SkipsGarbage(t *testing.T) {
	input := strings.Join([]string{
		"event: message",
		"data: not json",
		sseChunk("a", ""),
		"data:" + strings.TrimPrefix(sseChunk("b", ""), "data: "),
	}, "\n")

	result, err := readStream(strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", result.Text)
}

func TestNewClient_Timeout(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, NewClient("http://x", "", 1500).HTTPClient.Timeout)
	assert.Equal(t, time.Duration(0), NewClient("http://x", "", 0).HTTPClient.Timeout)
}
