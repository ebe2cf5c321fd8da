// Package nats wraps the NATS connection and JetStream context used by the
// batch consumer, the dead-letter stream and the seeder.
package nats

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/telhawk-systems/eventlogs/internal/logging"
)

// Client owns a single NATS connection.
type Client struct {
	conn *nats.Conn
}

// Config holds NATS client configuration.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name identifies the connection on the server.
	Name string

	// MaxReconnects is the maximum number of reconnection attempts.
	// Use -1 for infinite reconnects.
	MaxReconnects int

	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultConfig returns a Config pointed at the local default server.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "eventlogs",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewClient connects to cfg.URL.
func NewClient(cfg Config) (*Client, error) {
	logger := logging.ForComponent("nats")

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection without waiting for pending messages.
func (c *Client) Close() error {
	c.conn.Close()
	return nil
}

// Drain lets in-flight messages complete before closing.
func (c *Client) Drain() error {
	return c.conn.Drain()
}

// IsConnected reports broker reachability; readiness uses it.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}
