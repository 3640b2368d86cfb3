package ethrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClient subscribes to newHeads notifications over JSON-RPC
// WebSocket. It reconnects and resubscribes after transport failures;
// heads produced while disconnected are simply missed, which is safe
// because every consumer rebuilds from current state rather than
// applying deltas.
type WSClient struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pending maps request ID to channel waiting for the RPC result
	pending   map[uint64]chan json.RawMessage
	pendingMu sync.Mutex

	// subID is the active newHeads subscription ID
	subID   string
	subIDMu sync.Mutex

	// pendingSub is the request ID of the in-flight eth_subscribe,
	// zero when none
	pendingSub atomic.Uint64

	heads chan Head
	done  chan struct{}
	wg    sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		pending:  make(map[uint64]chan json.RawMessage),
		heads:    make(chan Head, 16),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeNewHeads subscribes to new block headers and returns the
// notification channel. One subscription per client.
func (c *WSClient) SubscribeNewHeads(ctx context.Context) (<-chan Head, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	if err := c.subscribe(ctx); err != nil {
		return nil, err
	}
	return c.heads, nil
}

// subscribe issues eth_subscribe and waits for the acknowledgment.
// The read loop records the subscription ID itself, before it
// dispatches any later frame, so no notification can outrun it.
func (c *WSClient) subscribe(ctx context.Context) error {
	reqID := c.requestID.Add(1)
	respCh := make(chan json.RawMessage, 1)

	c.pendingMu.Lock()
	c.pending[reqID] = respCh
	c.pendingMu.Unlock()
	c.pendingSub.Store(reqID)

	defer func() {
		c.pendingSub.CompareAndSwap(reqID, 0)
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "eth_subscribe",
		Params:  []interface{}{"newHeads"},
	}
	if err := c.writeJSON(req); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("client closed")
	case raw := <-respCh:
		var subID string
		if err := json.Unmarshal(raw, &subID); err != nil {
			return fmt.Errorf("unmarshal subscription id: %w", err)
		}
		return nil
	}
}

// wsMessage is an incoming frame: either an RPC response or a
// subscription notification.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Method string          `json:"method"`
	Params *wsSubParams    `json:"params"`
}

type wsSubParams struct {
	Subscription string     `json:"subscription"`
	Result       *wsNewHead `json:"result"`
}

type wsNewHead struct {
	Number string `json:"number"`
	Hash   string `json:"hash"`
}

// readLoop reads frames and dispatches them until the client closes.
// Reconnection runs in its own goroutine so this loop keeps servicing
// the connection while the resubscribe response is in flight.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if !c.reconnecting.Swap(true) {
				go c.reconnect()
			}
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch {
		case msg.ID != 0:
			if msg.Error == nil && c.pendingSub.Load() == msg.ID {
				var subID string
				if err := json.Unmarshal(msg.Result, &subID); err == nil {
					c.subIDMu.Lock()
					c.subID = subID
					c.subIDMu.Unlock()
				}
			}
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			c.pendingMu.Unlock()
			if ok && msg.Error == nil {
				ch <- msg.Result
			}

		case msg.Method == "eth_subscription" && msg.Params != nil && msg.Params.Result != nil:
			c.subIDMu.Lock()
			active := c.subID
			c.subIDMu.Unlock()
			if msg.Params.Subscription != active {
				continue
			}

			number, err := decodeQuantity(msg.Params.Result.Number)
			if err != nil {
				continue
			}
			head := Head{Number: number, Hash: msg.Params.Result.Hash}
			select {
			case c.heads <- head:
			default:
				// Consumer is behind; heads are only rebuild triggers,
				// dropping one loses nothing.
			}
		}
	}
}

// reconnect redials with exponential backoff until it gets a
// connection, then resubscribes. Runs in its own goroutine.
func (c *WSClient) reconnect() {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	delay := c.config.ReconnectDelay

	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		// Drop the dead connection so the read loop stops chewing on it
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.connect(ctx)
		cancel()
		if err == nil {
			break
		}

		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}

	// Resubscribe if a subscription was active
	c.subIDMu.Lock()
	active := c.subID != ""
	c.subIDMu.Unlock()
	if !active {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.subscribe(ctx); err != nil {
		// A failed resubscribe surfaces as the next read error,
		// which starts another attempt.
		return
	}
}

// pingLoop sends periodic ping frames.
func (c *WSClient) pingLoop() {
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
				deadline := time.Now().Add(c.config.WriteTimeout)
				_ = c.conn.WriteControl(websocket.PingMessage, nil, deadline)
			}
			c.connMu.Unlock()
		}
	}
}

// writeJSON writes a JSON frame under the connection write lock.
func (c *WSClient) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("no connection")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// Close shuts the client down and closes the heads channel.
func (c *WSClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.heads)
	return err
}
