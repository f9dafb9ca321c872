// Package stream turns the chunked inference response into a small number of
// live edits on the user-visible reply.
//
// The backend emits newline-delimited JSON records. Records may arrive split
// across chunk boundaries; every line is parsed independently and parse
// failures are silently dropped — the protocol tolerates partial lines, so a
// failed parse is never fatal. The aggregator is a single forward pass with
// constant state: fragments are concatenated in reception order, edits are
// rate limited, and a response that would exceed the inline rendering limit
// switches once to file-based delivery.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"
)

const (
	// flushInterval is the minimum time between visible edits.
	flushInterval = 1500 * time.Millisecond
	// inlineLimit is the largest header+content length rendered inline;
	// kept below the transport's 2000-character message cap.
	inlineLimit = 1800

	cursor         = "▌"
	overflowNotice = "\n\n⚠️ My answer is too long! I am preparing a .txt file, please wait..."
	overflowFinal  = "The response was too long to display. See the attached file."
	overflowFile   = "response.txt"
)

// Sink receives the user-visible output. Both operations are best effort:
// the aggregator logs failures and keeps going so bookkeeping can complete
// even when the transport connection has dropped.
type Sink interface {
	Edit(ctx context.Context, content string) error
	EditWithFile(ctx context.Context, content, filename string, data []byte) error
}

// Source yields raw chunks from the inference response. Next returns io.EOF
// when the stream ends. Chunk boundaries are meaningful and must not be
// coalesced by the caller.
type Source interface {
	Next() ([]byte, error)
}

// Result is what the stream produced once it ended.
type Result struct {
	Content    string // full concatenated response, for the history update
	Overflowed bool   // true when delivery switched to a file attachment
}

type state int

const (
	stateStreaming state = iota
	stateOverflowed
)

// Aggregator accumulates one in-flight response stream.
type Aggregator struct {
	header string
	sink   Sink
	now    func() time.Time // injectable for tests

	st          state
	fullContent string // confirmed, already pushed to the user
	buffer      string // received but not yet pushed
	lastFlush   time.Time
}

// New creates an Aggregator for one stream. header prefixes every visible edit.
func New(header string, sink Sink) *Aggregator {
	return &Aggregator{header: header, sink: sink, now: time.Now}
}

// Feed processes one raw chunk: parses its lines, then decides whether to
// push a visible edit.
func (a *Aggregator) Feed(ctx context.Context, chunk []byte) {
	a.buffer += parseChunk(chunk)

	if a.st != stateStreaming {
		return // overflowed: keep accumulating silently
	}
	if a.buffer == "" || a.now().Sub(a.lastFlush) <= flushInterval {
		return
	}

	if len(a.header)+len(a.fullContent)+len(a.buffer) > inlineLimit {
		a.st = stateOverflowed
		a.edit(ctx, a.header+a.fullContent+a.buffer+overflowNotice)
		return
	}

	a.fullContent += a.buffer
	a.buffer = ""
	a.edit(ctx, a.header+a.fullContent+cursor)
	a.lastFlush = a.now()
}

// Finish folds any residual buffer into the content and emits the final
// output: a file attachment when the stream overflowed, otherwise one last
// inline edit without the cursor. An empty response still produces a final
// edit with the bare header.
func (a *Aggregator) Finish(ctx context.Context) Result {
	a.fullContent += a.buffer
	a.buffer = ""

	if a.st == stateOverflowed {
		if err := a.sink.EditWithFile(ctx, a.header+overflowFinal, overflowFile, []byte(a.fullContent)); err != nil {
			slog.Warn("stream: file delivery failed", "err", err)
		}
		return Result{Content: a.fullContent, Overflowed: true}
	}

	a.edit(ctx, a.header+a.fullContent)
	return Result{Content: a.fullContent}
}

// Run consumes src to exhaustion. A transport read error aborts the stream
// and is returned alongside the partial result; the caller surfaces it as a
// backend failure.
func (a *Aggregator) Run(ctx context.Context, src Source) (Result, error) {
	for {
		chunk, err := src.Next()
		if len(chunk) > 0 {
			a.Feed(ctx, chunk)
		}
		if err == io.EOF {
			return a.Finish(ctx), nil
		}
		if err != nil {
			return Result{Content: a.fullContent + a.buffer}, err
		}
	}
}

func (a *Aggregator) edit(ctx context.Context, content string) {
	if err := a.sink.Edit(ctx, content); err != nil {
		slog.Warn("stream: edit failed", "err", err)
	}
}

// Collect drains src without issuing any edits and returns the concatenated
// fragments. Used by the summarize path, which replies once at the end.
func Collect(src Source) (string, error) {
	var out string
	for {
		chunk, err := src.Next()
		if len(chunk) > 0 {
			out += parseChunk(chunk)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// parseChunk splits chunk on newlines and extracts the content fragment from
// each line that parses. Lines that fail to parse are discarded: the backend
// may emit records that are valid only once concatenated across writes.
func parseChunk(chunk []byte) string {
	var out string
	for _, line := range bytes.Split(chunk, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out += rec.Message.Content
	}
	return out
}
