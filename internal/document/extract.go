// Package document extracts plain text from user-supplied attachments.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType marks a content type the extractor cannot handle.
// Callers reject these to the user before any model call.
var ErrUnsupportedType = errors.New("unsupported document type")

const maxDocumentBytes = 20 * 1024 * 1024 // matches the transport's upload cap

// Extractor fetches an attachment and converts it to plain text.
type Extractor struct {
	httpClient *http.Client
}

// NewExtractor creates an Extractor with a bounded fetch timeout.
func NewExtractor() *Extractor {
	return &Extractor{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// Extract downloads rawURL and returns its text. Supported content types:
// application/pdf, text/html (readable article extraction), and any other
// text/* (returned as-is). Anything else yields ErrUnsupportedType.
func (e *Extractor) Extract(ctx context.Context, rawURL, contentType string) (string, error) {
	switch {
	case strings.HasPrefix(contentType, "application/pdf"):
		data, err := e.fetch(ctx, rawURL)
		if err != nil {
			return "", err
		}
		return pdfText(data)

	case strings.HasPrefix(contentType, "text/html"):
		data, err := e.fetch(ctx, rawURL)
		if err != nil {
			return "", err
		}
		return htmlText(data, rawURL)

	case strings.HasPrefix(contentType, "text/"):
		data, err := e.fetch(ctx, rawURL)
		if err != nil {
			return "", err
		}
		return string(data), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build document request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch document: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

// pdfText extracts the plain text of every page.
func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return sb.String(), nil
}

// htmlText runs article extraction over an HTML body, falling back to the
// raw markup's text when readability finds nothing.
func htmlText(data []byte, rawURL string) (string, error) {
	u, _ := url.Parse(rawURL)
	article, err := readability.FromReader(bytes.NewReader(data), u)
	if err != nil {
		return "", fmt.Errorf("extract html text: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if article.Title != "" && text != "" {
		text = article.Title + "\n\n" + text
	}
	return text, nil
}
