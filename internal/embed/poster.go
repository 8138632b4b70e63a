package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// HTTPPoster relays host messages as JSON POSTs to a relay URL.
type HTTPPoster struct {
	url        string
	client     *http.Client
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewHTTPPoster creates a poster for url. Returns nil if url is empty.
func NewHTTPPoster(url string, logger *slog.Logger) *HTTPPoster {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPPoster{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		maxRetries: 2,
		retryDelay: time.Second,
	}
}

// Post sends a single message with retry on 5xx and network errors.
func (p *HTTPPoster) Post(ctx context.Context, payload json.RawMessage) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, time.Duration(attempt)*p.retryDelay); err != nil {
				return fmt.Errorf("%w (retry cancelled)", lastErr)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "haies/1.0")

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			p.logger.Warn("host relay: delivery failed", "url", p.url, "attempt", attempt, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr // don't retry 4xx
		}
	}

	return lastErr
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriterPoster writes each message as one JSON line.
type WriterPoster struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterPoster returns a poster writing to w.
func NewWriterPoster(w io.Writer) *WriterPoster {
	return &WriterPoster{w: w}
}

// Post writes payload followed by a newline.
func (p *WriterPoster) Post(_ context.Context, payload json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return fmt.Errorf("compact message: %w", err)
	}
	buf.WriteByte('\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.w.Write(buf.Bytes())
	return err
}
