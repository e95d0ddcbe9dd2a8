package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one physical connection to the feed.
type Conn interface {
	// ReadMessage blocks until the next frame arrives or the connection fails.
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens physical connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WSConfig holds tunable parameters for a WSDialer.
type WSConfig struct {
	URL string

	// Buffer sizes for the underlying TCP connection.
	ReadBufferSize  int
	WriteBufferSize int

	// HandshakeTimeout bounds the WebSocket upgrade. Zero leaves it to the
	// dial context.
	HandshakeTimeout time.Duration

	// ReadTimeout is the longest silence tolerated before the connection is
	// considered dead. Zero disables it.
	ReadTimeout time.Duration

	// Headers sent during the WebSocket handshake (e.g. Origin).
	Headers http.Header
}

// DefaultWSConfig returns defaults for the price feed.
func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:              url,
		ReadBufferSize:   4096,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
	}
}

// WSDialer dials the feed over WebSocket with TCP_NODELAY enabled.
type WSDialer struct {
	cfg    WSConfig
	dialer websocket.Dialer
}

// NewWSDialer creates a WSDialer for cfg.
func NewWSDialer(cfg WSConfig) *WSDialer {
	return &WSDialer{
		cfg: cfg,
		dialer: websocket.Dialer{
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			HandshakeTimeout: cfg.HandshakeTimeout,
			NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				d := net.Dialer{}
				conn, err := d.DialContext(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				if tc, ok := conn.(*net.TCPConn); ok {
					tc.SetNoDelay(true)
				}
				return conn, nil
			},
		},
	}
}

func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.cfg.URL, d.cfg.Headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.cfg.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.cfg.URL, err)
	}
	return &wsConn{conn: conn, readTimeout: d.cfg.ReadTimeout}, nil
}

type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
