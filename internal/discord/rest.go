package discord

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/novusbot/novus/internal/router"
)

const (
	apiBase    = "https://discord.com/api/v10"
	maxRetries = 3

	flagEphemeral = 64

	callbackChannelMessage = 4 // immediate reply
	callbackDeferred       = 5 // "thinking…" placeholder, edited later
)

// Rest performs the HTTP calls against the Discord REST API.
type Rest struct {
	token      string
	appID      string
	httpClient *http.Client
}

// NewRest creates a Rest client authenticated as the bot.
func NewRest(token, appID string) *Rest {
	return &Rest{
		token:      token,
		appID:      appID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateMessage posts a plain message to a channel. Used for the guild-join
// greeting; best effort at the call site.
func (r *Rest) CreateMessage(ctx context.Context, channelID, content string) error {
	url := apiBase + "/channels/" + channelID + "/messages"
	return r.doJSON(ctx, http.MethodPost, url, map[string]any{"content": content})
}

// RecentMessages fetches up to limit messages from a channel and returns them
// oldest first, ready for transcript building.
func (r *Rest) RecentMessages(ctx context.Context, channelID string, limit int) ([]router.TranscriptMessage, error) {
	url := fmt.Sprintf("%s/channels/%s/messages?limit=%d", apiBase, channelID, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build message fetch: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+r.token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("fetch messages: HTTP %d: %s", resp.StatusCode, body)
	}

	var raw []struct {
		Content string `json:"content"`
		Author  struct {
			Username string `json:"username"`
		} `json:"author"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	// The API returns newest first.
	out := make([]router.TranscriptMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		out = append(out, router.TranscriptMessage{
			Author:  raw[i].Author.Username,
			Content: raw[i].Content,
		})
	}
	return out, nil
}

// FetchBase64 downloads an attachment and returns it base64-encoded for the
// multimodal message payload.
func (r *Rest) FetchBase64(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build attachment fetch: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch attachment: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read attachment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// doJSON posts payload to url with bounded retries and 429 handling.
func (r *Rest) doJSON(ctx context.Context, method, url string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bot "+r.token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.httpClient.Do(req)
		if err != nil {
			time.Sleep(time.Second)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			var rate struct {
				RetryAfter float64 `json:"retry_after"`
			}
			_ = json.Unmarshal(body, &rate)
			wait := time.Duration(rate.RetryAfter*1000) * time.Millisecond
			if wait <= 0 {
				wait = time.Second
			}
			time.Sleep(wait)
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("discord: HTTP %d: %s", resp.StatusCode, string(body))
		}
		return nil
	}
	return fmt.Errorf("discord: max retries exceeded")
}

// Responder performs the reply operations for one interaction.
// It satisfies router.Replier (and with it the streaming sink).
type Responder struct {
	rest  *Rest
	id    string
	token string
	acked bool
}

// ResponderFor creates a Responder bound to ic.
func (r *Rest) ResponderFor(ic Interaction) *Responder {
	return &Responder{rest: r, id: ic.ID, token: ic.Token}
}

// Respond sends an immediate reply.
func (r *Responder) Respond(ctx context.Context, content string, ephemeral bool) error {
	data := map[string]any{"content": content}
	if ephemeral {
		data["flags"] = flagEphemeral
	}
	if err := r.callback(ctx, callbackChannelMessage, data); err != nil {
		return err
	}
	r.acked = true
	return nil
}

// RespondEmbed sends an immediate embed reply. Used by the usage report.
func (r *Responder) RespondEmbed(ctx context.Context, title, description string, ephemeral bool) error {
	data := map[string]any{
		"embeds": []map[string]any{{
			"color":       0x0099ff,
			"title":       title,
			"description": description,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	if ephemeral {
		data["flags"] = flagEphemeral
	}
	if err := r.callback(ctx, callbackChannelMessage, data); err != nil {
		return err
	}
	r.acked = true
	return nil
}

// Defer acknowledges the interaction with a placeholder that later edits
// replace.
func (r *Responder) Defer(ctx context.Context, ephemeral bool) error {
	data := map[string]any{}
	if ephemeral {
		data["flags"] = flagEphemeral
	}
	if err := r.callback(ctx, callbackDeferred, data); err != nil {
		return err
	}
	r.acked = true
	return nil
}

// Acked reports whether the interaction has been acknowledged yet, which
// decides between an immediate reply and an edit on unexpected errors.
func (r *Responder) Acked() bool { return r.acked }

// Edit replaces the content of the original (deferred) response.
func (r *Responder) Edit(ctx context.Context, content string) error {
	return r.rest.doJSON(ctx, http.MethodPatch, r.originalURL(), map[string]any{"content": content})
}

// EditWithFile replaces the original response with content plus an attached
// text file. Sent as multipart form data; not retried.
func (r *Responder) EditWithFile(ctx context.Context, content, filename string, data []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	payload := map[string]any{
		"content": content,
		"attachments": []map[string]any{
			{"id": 0, "filename": filename},
		},
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal file payload: %w", err)
	}
	if err := w.WriteField("payload_json", string(payloadJSON)); err != nil {
		return fmt.Errorf("write payload field: %w", err)
	}
	part, err := w.CreateFormFile("files[0]", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, r.originalURL(), &buf)
	if err != nil {
		return fmt.Errorf("build file edit: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+r.rest.token)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.rest.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("file edit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("file edit: HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

func (r *Responder) callback(ctx context.Context, kind int, data map[string]any) error {
	url := apiBase + "/interactions/" + r.id + "/" + r.token + "/callback"
	return r.rest.doJSON(ctx, http.MethodPost, url, map[string]any{
		"type": kind,
		"data": data,
	})
}

func (r *Responder) originalURL() string {
	return apiBase + "/webhooks/" + r.rest.appID + "/" + r.token + "/messages/@original"
}
