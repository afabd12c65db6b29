package oracle

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// GatewayConfig holds tunable parameters for the feed gateway.
type GatewayConfig struct {
	URL string

	// Buffer sizes for the underlying TCP connection.
	ReadBufferSize  int
	WriteBufferSize int

	// HeartbeatTimeout is the maximum duration of silence before the
	// gateway considers the connection dead and triggers a reconnect.
	HeartbeatTimeout time.Duration

	// Backoff parameters for reconnection.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	BackoffFactor  float64

	// Headers sent during the WebSocket handshake.
	Headers http.Header
}

// DefaultGatewayConfig returns defaults tuned for oracle round data, which
// arrives far less often than order-book traffic.
func DefaultGatewayConfig(url string) GatewayConfig {
	return GatewayConfig{
		URL:              url,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HeartbeatTimeout: 30 * time.Second,
		BackoffInitial:   100 * time.Millisecond,
		BackoffMax:       10 * time.Second,
		BackoffFactor:    2.0,
	}
}

// roundMessage is the wire format of one oracle round.
type roundMessage struct {
	Stream    string `json:"stream"`
	Answer    string `json:"answer"` // decimal string, signed
	UpdatedAt int64  `json:"updated_at"`
}

// Gateway maintains a resilient WebSocket subscription to an oracle round
// stream and keeps one MemoryFeed per stream current. It reconnects with
// exponential backoff and re-subscribes after every reconnect.
type Gateway struct {
	cfg GatewayConfig

	mu   sync.RWMutex
	conn *websocket.Conn

	feedMu sync.RWMutex
	feeds  map[string]*MemoryFeed

	cancel context.CancelFunc
	done   chan struct{}
}

// NewGateway creates a gateway. Call Connect to start.
func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		cfg:   cfg,
		feeds: make(map[string]*MemoryFeed),
		done:  make(chan struct{}),
	}
}

// Feed returns the MemoryFeed for a stream name, creating it empty if
// needed. The stream is subscribed on the next (re)connect.
func (g *Gateway) Feed(stream string) *MemoryFeed {
	g.feedMu.Lock()
	defer g.feedMu.Unlock()

	f, ok := g.feeds[stream]
	if !ok {
		f = NewMemoryFeed()
		g.feeds[stream] = f
	}
	return f
}

// Connect dials the oracle endpoint and starts the read loop. It blocks
// until the initial connection succeeds or ctx is cancelled.
func (g *Gateway) Connect(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)

	if err := g.dial(ctx); err != nil {
		return err
	}
	g.subscribeAll()

	go g.readLoop(ctx)
	return nil
}

// Close shuts down the gateway.
func (g *Gateway) Close() {
	if g.cancel != nil {
		g.cancel()
	}
	g.mu.Lock()
	if g.conn != nil {
		g.conn.Close()
	}
	g.mu.Unlock()
	close(g.done)
}

// Done returns a channel closed when the gateway has fully shut down.
func (g *Gateway) Done() <-chan struct{} {
	return g.done
}

// dial establishes the WebSocket connection with TCP_NODELAY enabled.
func (g *Gateway) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		ReadBufferSize:  g.cfg.ReadBufferSize,
		WriteBufferSize: g.cfg.WriteBufferSize,
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
	}

	conn, _, err := dialer.DialContext(ctx, g.cfg.URL, g.cfg.Headers)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
	return nil
}

// subscribeAll sends a subscribe frame for every known stream.
func (g *Gateway) subscribeAll() {
	g.feedMu.RLock()
	streams := make([]string, 0, len(g.feeds))
	for s := range g.feeds {
		streams = append(streams, s)
	}
	g.feedMu.RUnlock()

	if len(streams) == 0 {
		return
	}

	msg, err := json.Marshal(map[string]any{"op": "subscribe", "streams": streams})
	if err != nil {
		log.Printf("gateway: marshal subscribe: %v", err)
		return
	}

	g.mu.RLock()
	c := g.conn
	g.mu.RUnlock()
	if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
		log.Printf("gateway: subscribe write error: %v", err)
	}
}

// reconnect loops with exponential backoff until a connection is
// re-established or the context is cancelled.
func (g *Gateway) reconnect(ctx context.Context) bool {
	delay := g.cfg.BackoffInitial
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := g.dial(ctx); err != nil {
			log.Printf("gateway: reconnect failed: %v (retry in %v)", err, delay)
			delay = time.Duration(math.Min(
				float64(delay)*g.cfg.BackoffFactor,
				float64(g.cfg.BackoffMax),
			))
			continue
		}

		g.subscribeAll()
		return true
	}
}

// readLoop reads round messages and applies them to feeds. It doubles as
// the heartbeat monitor: silence beyond HeartbeatTimeout triggers a
// reconnect.
func (g *Gateway) readLoop(ctx context.Context) {
	for {
		g.mu.RLock()
		c := g.conn
		g.mu.RUnlock()

		c.SetReadDeadline(time.Now().Add(g.cfg.HeartbeatTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("gateway: read error (triggering reconnect): %v", err)
			c.Close()
			if !g.reconnect(ctx) {
				return
			}
			continue
		}

		g.apply(msg)
	}
}

// apply parses one round message and updates the matching feed. Rounds for
// unknown streams and malformed answers are dropped with a log line.
func (g *Gateway) apply(msg []byte) {
	var round roundMessage
	if err := json.Unmarshal(msg, &round); err != nil {
		log.Printf("gateway: invalid JSON: %v", err)
		return
	}
	if round.Stream == "" {
		return
	}

	answer, ok := new(big.Int).SetString(round.Answer, 10)
	if !ok {
		log.Printf("gateway: unparseable answer %q for stream %s", round.Answer, round.Stream)
		return
	}

	g.feedMu.RLock()
	feed, known := g.feeds[round.Stream]
	g.feedMu.RUnlock()
	if !known {
		log.Printf("gateway: round for unknown stream %s, dropping", round.Stream)
		return
	}

	feed.Update(answer, round.UpdatedAt)
}
