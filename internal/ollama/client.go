// Package ollama is the HTTP client for the local chat-completion endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is one entry in the outgoing message list. Images carries
// base64-encoded attachments on the final user turn for multimodal models.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type chatOptions struct {
	NumPredict int `json:"num_predict"`
}

// Client talks to one Ollama-compatible endpoint.
type Client struct {
	apiBase    string
	numPredict int
	httpClient *http.Client
}

// New creates a Client for apiBase (e.g. http://localhost:11434).
// timeout bounds the whole request including the streamed body; a stalled
// backend fails the command instead of hanging it forever.
func New(apiBase string, numPredict int, timeout time.Duration) *Client {
	if numPredict <= 0 {
		numPredict = 2048
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		apiBase:    apiBase,
		numPredict: numPredict,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Chat posts a streaming chat request and returns the raw chunk stream.
// The caller must Close the stream.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (*Stream, error) {
	body := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
		Options:  chatOptions{NumPredict: c.numPredict},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request (model %s): %w", model, err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("chat request (model %s): HTTP %d: %s", model, resp.StatusCode, raw)
	}

	return &Stream{body: resp.Body}, nil
}

// Stream exposes the response body as a sequence of raw chunks. Each Next
// returns one transport read; chunk boundaries are preserved because the
// downstream line parser's drop-on-partial semantics depend on them.
type Stream struct {
	body io.ReadCloser
	buf  [4096]byte
}

// Next returns the next chunk, or io.EOF when the stream ends.
func (s *Stream) Next() ([]byte, error) {
	n, err := s.body.Read(s.buf[:])
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		return chunk, err
	}
	return nil, err
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.body.Close()
}
