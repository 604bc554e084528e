// Package hub keeps the push channel connections of the marker hub.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"SessionOverlay/internal/domain/models"
	drepo "SessionOverlay/internal/domain/repository"
	applogger "SessionOverlay/pkg/logger"
)

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// textMessage matches websocket.TextMessage.
const textMessage = 1

// PollFunc streams live bars of one channel until ctx is done.
type PollFunc func(ctx context.Context, symbol string, tf drepo.Timeframe, emit func(models.FeedMessage))

// ChannelName builds the SYMBOL-TIMEFRAME channel key.
func ChannelName(symbol string, tf drepo.Timeframe) string {
	return symbol + "-" + string(tf)
}

type Client struct {
	id      uint64
	channel string
	symbol  string
	conn    Conn
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (c *Client) ID() uint64      { return c.id }
func (c *Client) Channel() string { return c.channel }
func (c *Client) Symbol() string  { return c.symbol }

// Send writes one message. Writes to a client are serialised.
func (c *Client) Send(msg models.FeedMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	return c.write(b)
}

func (c *Client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client %d closed", c.id)
	}
	if c.timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.conn.WriteMessage(textMessage, b)
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		_ = c.conn.Close()
	}
}

type channel struct {
	clients map[uint64]*Client
	cancel  context.CancelFunc
}

// ChannelInfo describes one open channel.
type ChannelInfo struct {
	Name    string `json:"name"`
	Clients int    `json:"clients"`
}

// Manager tracks clients per channel. The first client of a channel starts
// its poller and the last one to leave stops it.
type Manager struct {
	log          *applogger.Logger
	metrics      drepo.Metrics
	poll         PollFunc
	writeTimeout time.Duration
	nextID       atomic.Uint64

	mu       sync.Mutex
	base     context.Context
	channels map[string]*channel
}

type Option func(*Manager)

func WithPoller(p PollFunc) Option {
	return func(m *Manager) { m.poll = p }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.writeTimeout = d
		}
	}
}

func NewManager(log *applogger.Logger, metrics drepo.Metrics, opts ...Option) *Manager {
	m := &Manager{
		log:          log.Component("hub"),
		metrics:      metrics,
		writeTimeout: 5 * time.Second,
		base:         context.Background(),
		channels:     make(map[string]*channel),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run binds pollers to ctx and closes every client when it ends.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	m.base = ctx
	m.mu.Unlock()

	<-ctx.Done()
	m.Shutdown()
}

// Join registers conn on the channel of symbol and tf.
func (m *Manager) Join(symbol string, tf drepo.Timeframe, conn Conn) *Client {
	name := ChannelName(symbol, tf)
	c := &Client{
		id:      m.nextID.Add(1),
		channel: name,
		symbol:  symbol,
		conn:    conn,
		timeout: m.writeTimeout,
	}

	m.mu.Lock()
	ch, ok := m.channels[name]
	if !ok {
		ch = &channel{clients: make(map[uint64]*Client)}
		m.channels[name] = ch
		if m.poll != nil {
			ctx, cancel := context.WithCancel(m.base)
			ch.cancel = cancel
			go m.poll(ctx, symbol, tf, func(msg models.FeedMessage) { m.Broadcast(name, msg) })
		}
	}
	ch.clients[c.id] = c
	n := len(ch.clients)
	m.mu.Unlock()

	if !ok {
		m.log.Info("Channel opened", applogger.String("channel", name))
	}
	m.log.Debug("Client joined", applogger.String("channel", name), applogger.Int("clients", n))
	return c
}

// Leave removes c and closes its connection. It is safe to call twice.
func (m *Manager) Leave(c *Client) {
	m.mu.Lock()
	ch, ok := m.channels[c.channel]
	var last bool
	if ok {
		delete(ch.clients, c.id)
		if len(ch.clients) == 0 {
			last = true
			delete(m.channels, c.channel)
			if ch.cancel != nil {
				ch.cancel()
			}
		}
	}
	m.mu.Unlock()

	c.close()
	if last {
		m.log.Info("Channel closed", applogger.String("channel", c.channel))
	}
}

// Broadcast sends msg to every client of one channel and returns how many
// received it. Clients that fail to receive are dropped.
func (m *Manager) Broadcast(name string, msg models.FeedMessage) int {
	b, err := json.Marshal(msg)
	if err != nil {
		m.log.Error("Failed to encode broadcast", applogger.String("channel", name), applogger.Error(err))
		return 0
	}

	m.mu.Lock()
	ch, ok := m.channels[name]
	var clients []*Client
	if ok {
		clients = make([]*Client, 0, len(ch.clients))
		for _, c := range ch.clients {
			clients = append(clients, c)
		}
	}
	m.mu.Unlock()

	sent := 0
	for _, c := range clients {
		if err := c.write(b); err != nil {
			m.log.Warn("Dropping client after failed send",
				applogger.String("channel", name),
				applogger.Int64("client", int64(c.id)),
				applogger.Error(err),
			)
			m.metrics.RecordError("hub_send")
			m.Leave(c)
			continue
		}
		sent++
	}
	return sent
}

// ChannelsFor lists the open channels whose name starts with symbol.
func (m *Manager) ChannelsFor(symbol string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name := range m.channels {
		if strings.HasPrefix(name, symbol) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// BroadcastSymbol sends msg to every channel of symbol. It returns the
// channels targeted and the clients reached.
func (m *Manager) BroadcastSymbol(symbol string, msg models.FeedMessage) (channels, clients int) {
	names := m.ChannelsFor(symbol)
	for _, name := range names {
		clients += m.Broadcast(name, msg)
	}
	return len(names), clients
}

// Channels returns every open channel with its client count.
func (m *Manager) Channels() []ChannelInfo {
	m.mu.Lock()
	out := make([]ChannelInfo, 0, len(m.channels))
	for name, ch := range m.channels {
		out = append(out, ChannelInfo{Name: name, Clients: len(ch.clients)})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Shutdown stops every poller and closes every client.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	chans := m.channels
	m.channels = make(map[string]*channel)
	m.mu.Unlock()

	for _, ch := range chans {
		if ch.cancel != nil {
			ch.cancel()
		}
		for _, c := range ch.clients {
			c.close()
		}
	}
}
