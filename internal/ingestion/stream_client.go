package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/observability"
)

// Stream control frame methods.
const (
	methodSubscribeNewToken       = "subscribeNewToken"
	methodSubscribeMigration      = "subscribeMigration"
	methodSubscribeTokenTrade     = "subscribeTokenTrade"
	methodSubscribeAccountTrade   = "subscribeAccountTrade"
	methodUnsubscribeTokenTrade   = "unsubscribeTokenTrade"
	methodUnsubscribeAccountTrade = "unsubscribeAccountTrade"
)

// StreamClientConfig configures stream connection behavior.
type StreamClientConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential reconnect backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// DriftRefresh is how often the tracked-key sets are re-checked
	// against what the server was last told.
	DriftRefresh time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamClientConfig {
	return StreamClientConfig{
		ReconnectDelay:    5 * time.Second,
		MaxReconnectDelay: 120 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		DriftRefresh:      5 * time.Minute,
	}
}

// subscribeRequest is a stream control frame.
type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// streamMessage is the raw server event payload.
type streamMessage struct {
	Signature       string  `json:"signature"`
	Mint            string  `json:"mint"`
	TxType          string  `json:"txType"`
	TraderPublicKey string  `json:"traderPublicKey"`
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	SolAmount       float64 `json:"solAmount"`
	Pool            string  `json:"pool"`
}

// StreamClient maintains a long-lived push connection to the stream source.
// It resubscribes after reconnects, re-checks tracked-key drift periodically,
// and never lets a malformed message kill the read loop.
type StreamClient struct {
	endpoint string
	config   StreamClientConfig
	log      zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	events chan domain.StreamEvent

	// Desired and last-sent subscription key sets. The drift loop
	// reconciles them with unsubscribe/subscribe frames.
	subMu       sync.Mutex
	wantTokens  []string
	wantWallets []string
	sentTokens  map[string]bool
	sentWallets map[string]bool
	driftKick   chan struct{}

	parseFailures atomic.Uint64
	reconnects    atomic.Uint64

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewStreamClient connects to the stream endpoint and subscribes to the
// new-token and migration feeds.
func NewStreamClient(ctx context.Context, endpoint string, config *StreamClientConfig, log zerolog.Logger) (*StreamClient, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	c := &StreamClient{
		endpoint:    endpoint,
		config:      cfg,
		log:         log.With().Str("component", "stream").Logger(),
		events:      make(chan domain.StreamEvent, 10000),
		sentTokens:  make(map[string]bool),
		sentWallets: make(map[string]bool),
		driftKick:   make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	if err := c.subscribeBase(); err != nil {
		c.conn.Close()
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	c.wg.Add(1)
	go c.driftLoop()

	return c, nil
}

// connect establishes the WebSocket connection.
func (c *StreamClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	// Pongs extend the read deadline so quiet stretches on the feed do
	// not look like dead connections.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	c.conn = conn
	return nil
}

// Events returns the decoded event stream.
func (c *StreamClient) Events() <-chan domain.StreamEvent {
	return c.events
}

// SetSubscriptions records the desired tracked-token and tracked-wallet sets
// and kicks the drift loop to reconcile them.
func (c *StreamClient) SetSubscriptions(tokens, wallets []string) {
	c.subMu.Lock()
	c.wantTokens = append([]string(nil), tokens...)
	c.wantWallets = append([]string(nil), wallets...)
	c.subMu.Unlock()

	select {
	case c.driftKick <- struct{}{}:
	default:
	}
}

// ParseFailures returns the count of dropped malformed messages.
func (c *StreamClient) ParseFailures() uint64 {
	return c.parseFailures.Load()
}

// Reconnects returns the count of reconnect attempts.
func (c *StreamClient) Reconnects() uint64 {
	return c.reconnects.Load()
}

// Close closes the stream connection and the events channel.
func (c *StreamClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

// writeJSON writes a control frame under the connection lock.
func (c *StreamClient) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// subscribeBase subscribes to the feeds that are always on.
func (c *StreamClient) subscribeBase() error {
	if err := c.writeJSON(subscribeRequest{Method: methodSubscribeNewToken}); err != nil {
		return fmt.Errorf("subscribe new tokens: %w", err)
	}
	if err := c.writeJSON(subscribeRequest{Method: methodSubscribeMigration}); err != nil {
		return fmt.Errorf("subscribe migrations: %w", err)
	}
	return nil
}

// readLoop reads messages and dispatches decoded events.
func (c *StreamClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Rate-limit closes are transient; the connection is rebuilt
			// on the same backoff schedule.
			if websocket.IsCloseError(err, websocket.CloseInternalServerErr) {
				c.log.Warn().Err(err).Msg("stream closed with 1011, likely rate limited")
			} else {
				c.log.Warn().Err(err).Msg("stream read failed")
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(jitter(reconnectDelay))
			}

			// Exponential backoff for the next attempt
			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// jitter spreads a delay ±20% so reconnecting clients do not stampede.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}

// reconnect rebuilds the connection and replays all subscriptions.
func (c *StreamClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	c.reconnects.Add(1)
	observability.RecordStreamReconnect()

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.log.Warn().Err(err).Msg("stream reconnect failed")
		// Will retry on next read error
		return
	}

	if err := c.subscribeBase(); err != nil {
		c.log.Warn().Err(err).Msg("resubscribe base feeds failed")
		return
	}

	// The new connection knows nothing about tracked keys; clear the
	// sent sets so the drift loop replays them in full.
	c.subMu.Lock()
	c.sentTokens = make(map[string]bool)
	c.sentWallets = make(map[string]bool)
	c.subMu.Unlock()

	c.kickDrift()

	c.log.Info().Msg("stream reconnected")
}

func (c *StreamClient) kickDrift() {
	select {
	case c.driftKick <- struct{}{}:
	default:
	}
}

// driftLoop reconciles desired and sent subscription sets. It runs on every
// kick and at least every DriftRefresh.
func (c *StreamClient) driftLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.DriftRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		case <-c.driftKick:
		}
		c.syncSubscriptions()
	}
}

// syncSubscriptions sends unsubscribe frames for dropped keys and subscribe
// frames for new ones. It holds the subscription lock throughout so the sent
// sets always match what went over the wire.
func (c *StreamClient) syncSubscriptions() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	addTokens, dropTokens := diffKeys(c.wantTokens, c.sentTokens)
	addWallets, dropWallets := diffKeys(c.wantWallets, c.sentWallets)

	if len(addTokens)+len(dropTokens)+len(addWallets)+len(dropWallets) == 0 {
		return
	}

	frames := []struct {
		method     string
		keys       []string
		sent       map[string]bool
		subscribed bool
	}{
		{methodUnsubscribeTokenTrade, dropTokens, c.sentTokens, false},
		{methodSubscribeTokenTrade, addTokens, c.sentTokens, true},
		{methodUnsubscribeAccountTrade, dropWallets, c.sentWallets, false},
		{methodSubscribeAccountTrade, addWallets, c.sentWallets, true},
	}

	for _, f := range frames {
		if len(f.keys) == 0 {
			continue
		}
		if err := c.writeJSON(subscribeRequest{Method: f.method, Keys: f.keys}); err != nil {
			// The reconnect path replays everything, so a failed frame
			// just stays pending.
			c.log.Warn().Err(err).Str("method", f.method).Msg("subscription frame failed")
			return
		}
		for _, k := range f.keys {
			if f.subscribed {
				f.sent[k] = true
			} else {
				delete(f.sent, k)
			}
		}
	}

	c.log.Debug().
		Int("tokens_added", len(addTokens)).
		Int("tokens_dropped", len(dropTokens)).
		Int("wallets_added", len(addWallets)).
		Int("wallets_dropped", len(dropWallets)).
		Msg("subscriptions reconciled")
}

// diffKeys returns which desired keys are missing from sent and which sent
// keys are no longer desired.
func diffKeys(want []string, sent map[string]bool) (add, drop []string) {
	wanted := make(map[string]bool, len(want))
	for _, k := range want {
		wanted[k] = true
		if !sent[k] {
			add = append(add, k)
		}
	}
	for k := range sent {
		if !wanted[k] {
			drop = append(drop, k)
		}
	}
	return add, drop
}

// handleMessage decodes one server message and forwards it as an event.
func (c *StreamClient) handleMessage(message []byte) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.parseFailures.Add(1)
		c.log.Debug().Err(err).Msg("dropped unparseable stream message")
		return
	}

	if msg.TxType == "" {
		// Subscription acks and server notices carry no txType.
		return
	}

	txType := domain.TxType(msg.TxType)
	if !txType.IsValid() || msg.Mint == "" {
		c.parseFailures.Add(1)
		return
	}

	ev := domain.StreamEvent{
		Type:        txType,
		Signature:   msg.Signature,
		Mint:        msg.Mint,
		Trader:      msg.TraderPublicKey,
		SolAmount:   msg.SolAmount,
		TimestampMs: time.Now().UnixMilli(),
	}
	if msg.Name != "" {
		ev.Name = &msg.Name
	}
	if msg.Symbol != "" {
		ev.Symbol = &msg.Symbol
	}

	observability.RecordStreamEvent(txType.String())

	// Block until delivered; the ingestor drains quickly and the buffer
	// absorbs bursts.
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *StreamClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}
