package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"streamedit/logger"

	"github.com/andybalholm/brotli"
)

// DefaultPath is the chat completions endpoint relative to the base URL
const DefaultPath = "/v1/chat/completions"

const maxSSELine = 1 << 20

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest matches the OpenAI Chat Completions API format
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream"`
}

// StreamChunk represents a single SSE chunk from a streaming chat response
type StreamChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StreamResult contains the result of a streaming completion
type StreamResult struct {
	Text         string
	FinishReason string
}

// Client is a reusable OpenAI-compatible API client
type Client struct {
	HTTPClient *http.Client
	URL        string
	Path       string
	APIKey     string
	Compress   bool // brotli-compress request bodies
}

// NewClient creates a new OpenAI-compatible client
// timeoutMs is the HTTP client timeout in milliseconds (0 = no timeout)
func NewClient(url, apiKey string, timeoutMs int) *Client {
	timeout := time.Duration(0)
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		URL:        strings.TrimSuffix(url, "/"),
		Path:       DefaultPath,
		APIKey:     apiKey,
	}
}

// StreamChat sends a streaming chat request and calls onDelta with every
// content delta as it arrives
func (c *Client) StreamChat(ctx context.Context, req *ChatRequest, onDelta func(string)) (*StreamResult, error) {
	defer logger.Trace("openai.StreamChat")()
	req.Stream = true

	body, err := c.encode(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.URL+c.Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.Compress {
		httpReq.Header.Set("Content-Encoding", "br")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	result, err := readStream(resp.Body, onDelta)
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, err
}

// encode marshals the request without HTML escaping, compressing it when
// enabled
func (c *Client) encode(req *ChatRequest) (io.Reader, error) {
	var reqBodyBuf bytes.Buffer
	encoder := json.NewEncoder(&reqBodyBuf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if !c.Compress {
		return &reqBodyBuf, nil
	}

	// Compress with brotli (quality 1 for speed)
	var compressedBuf bytes.Buffer
	brotliWriter := brotli.NewWriterLevel(&compressedBuf, 1)
	if _, err := brotliWriter.Write(reqBodyBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to compress request: %w", err)
	}
	if err := brotliWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}
	return &compressedBuf, nil
}

// readStream reads SSE "data:" lines until [DONE] or EOF
func readStream(body io.Reader, onDelta func(string)) (*StreamResult, error) {
	var textBuilder strings.Builder
	var finishReason string

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Debug("openai stream: failed to parse chunk: %v", err)
			continue
		}
		if chunk.Error != nil {
			return &StreamResult{Text: textBuilder.String()}, fmt.Errorf("stream error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta != "" {
			textBuilder.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		if chunk.Choices[0].FinishReason != "" {
			finishReason = chunk.Choices[0].FinishReason
		}
	}

	result := &StreamResult{Text: textBuilder.String(), FinishReason: finishReason}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read stream: %w", err)
	}
	return result, nil
}
