package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// WSPublisher streams overlay snapshots to the gateway's overlay
// websocket, where they fan out to any connected viewers. The
// connection is dialed lazily and redialed after a write failure.
type WSPublisher struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// WSOption configures a WSPublisher.
type WSOption func(*WSPublisher)

// WithWSLogger sets the structured logger.
func WithWSLogger(logger *slog.Logger) WSOption {
	return func(p *WSPublisher) { p.logger = logger.With("component", "overlay.ws") }
}

// NewWSPublisher creates a publisher for the given ws:// URL.
func NewWSPublisher(url string, opts ...WSOption) *WSPublisher {
	p := &WSPublisher{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: slog.Default().With("component", "overlay.ws"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends one snapshot. A failed write drops the connection so
// the next call redials; overlay frames are disposable.
func (p *WSPublisher) Publish(ctx context.Context, s State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
		if err != nil {
			return fmt.Errorf("overlay: dial %s: %w", p.url, err)
		}
		p.conn = conn
		p.logger.Info("overlay stream connected", "url", p.url)
	}

	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(s); err != nil {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("overlay: write snapshot: %w", err)
	}
	return nil
}

// Close shuts the connection down.
func (p *WSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	if cerr := p.conn.Close(); err == nil {
		err = cerr
	}
	p.conn = nil
	return err
}
