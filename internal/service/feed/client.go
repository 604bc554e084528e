package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"SessionOverlay/internal/domain/models"
	drepo "SessionOverlay/internal/domain/repository"
	applogger "SessionOverlay/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a MarkerStream backed by the hub's websocket channel.
type Client struct {
	feedURL      string
	pingInterval time.Duration
	log          *applogger.Logger
	dialer       *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a new hub MarkerStream.
func New(feedURL string, pingInterval time.Duration, log *applogger.Logger) *Client {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		feedURL:      feedURL,
		pingInterval: pingInterval,
		log:          log,
		dialer:       websocket.DefaultDialer,
	}
}

// Connect opens the channel of symbol and tf. An existing connection is
// closed first.
func (c *Client) Connect(ctx context.Context, symbol string, tf drepo.Timeframe) error {
	_ = c.Close()

	u, err := url.Parse(c.feedURL)
	if err != nil {
		return fmt.Errorf("feed url: %w", err)
	}
	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("timeframe", string(tf))
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("feed connected", applogger.String("symbol", symbol), applogger.String("timeframe", string(tf)))
	return nil
}

// Read streams feed messages of the current connection. Both channels close
// when the connection ends or ctx is done.
func (c *Client) Read(ctx context.Context) (<-chan models.FeedMessage, <-chan error) {
	msgs := make(chan models.FeedMessage, 64)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	done := make(chan struct{})

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(msgs)
		defer close(errs)
		defer close(done)
		if conn == nil {
			errs <- fmt.Errorf("feed conn nil")
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.markDisconnected(conn)
				if ctx.Err() == nil {
					errs <- fmt.Errorf("feed read: %w", err)
				}
				return
			}
			var m models.FeedMessage
			if err := json.Unmarshal(b, &m); err != nil {
				c.log.Warn("feed frame ignored", applogger.Error(err))
				continue
			}
			select {
			case msgs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, errs
}

func (c *Client) markDisconnected(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.connected = false
	}
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.MarkerStream = (*Client)(nil)
