// Package embed implements the message channel between the widget and the
// page embedding it.
package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/MTES-MCT/envergo/internal/models"
)

// Poster delivers a message to the host page.
type Poster interface {
	Post(ctx context.Context, payload json.RawMessage) error
}

// Channel sends messages to the host and filters incoming ones by origin.
type Channel struct {
	origin string
	poster Poster
	logger *slog.Logger
}

// NewChannel returns a channel for a widget served from origin.
func NewChannel(origin string, poster Poster, logger *slog.Logger) (*Channel, error) {
	normalized, err := NormalizeOrigin(origin)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{origin: normalized, poster: poster, logger: logger}, nil
}

// Origin returns the normalized widget origin.
func (c *Channel) Origin() string {
	return c.origin
}

// NormalizeOrigin reduces a URL to its lower-case scheme://host[:port] form,
// dropping default ports.
func NormalizeOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("origin %q: scheme and host required", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, nil
}

// SameOrigin reports whether origin is the widget origin.
func (c *Channel) SameOrigin(origin string) bool {
	normalized, err := NormalizeOrigin(origin)
	return err == nil && normalized == c.origin
}

// SendCancel tells the host the user abandoned the input.
func (c *Channel) SendCancel(ctx context.Context) error {
	payload, err := json.Marshal(models.HostMessage{Action: models.ActionCancel})
	if err != nil {
		return fmt.Errorf("encode cancel message: %w", err)
	}
	return c.send(ctx, payload)
}

// SendCompletion forwards the save response body to the host, unmodified.
func (c *Channel) SendCompletion(ctx context.Context, saved json.RawMessage) error {
	if !json.Valid(saved) {
		return fmt.Errorf("completion message is not valid JSON")
	}
	return c.send(ctx, saved)
}

func (c *Channel) send(ctx context.Context, payload json.RawMessage) error {
	if c.poster == nil {
		return nil
	}
	if err := c.poster.Post(ctx, payload); err != nil {
		return fmt.Errorf("post host message: %w", err)
	}
	c.logger.Debug("host message sent", "size", len(payload))
	return nil
}

// Receive decodes a message from the host. Messages from a foreign origin,
// or that cannot be decoded, are dropped and ok is false.
func (c *Channel) Receive(origin string, payload []byte) (msg models.HostMessage, ok bool) {
	if !c.SameOrigin(origin) {
		c.logger.Debug("ignoring message from foreign origin", "origin", origin)
		return models.HostMessage{}, false
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Debug("ignoring undecodable host message", "error", err)
		return models.HostMessage{}, false
	}
	return msg, true
}
