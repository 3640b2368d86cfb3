package ethrpc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newHeadsServer upgrades one connection, answers eth_subscribe, and
// pushes the given head numbers.
func newHeadsServer(t *testing.T, headNumbers []string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Method != "eth_subscribe" {
			t.Errorf("expected eth_subscribe, got %s", req.Method)
		}

		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": "0xsub1",
		})

		for _, n := range headNumbers {
			conn.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  "eth_subscription",
				"params": map[string]interface{}{
					"subscription": "0xsub1",
					"result":       map[string]interface{}{"number": n, "hash": "0xhead" + n},
				},
			})
		}

		// Keep the connection open until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWSClient_SubscribeNewHeads(t *testing.T) {
	server := newHeadsServer(t, []string{"0x10", "0x11"})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	heads, err := client.SubscribeNewHeads(ctx)
	if err != nil {
		t.Fatalf("SubscribeNewHeads: %v", err)
	}

	for _, want := range []uint64{16, 17} {
		select {
		case head := <-heads:
			if head.Number != want {
				t.Errorf("head number = %d, want %d", head.Number, want)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for head %d", want)
		}
	}
}

func TestWSClient_IgnoresForeignSubscription(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": "0xsub1",
		})

		// Notification for a subscription this client does not own
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "eth_subscription",
			"params": map[string]interface{}{
				"subscription": "0xother",
				"result":       map[string]interface{}{"number": "0x99", "hash": "0x"},
			},
		})
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "eth_subscription",
			"params": map[string]interface{}{
				"subscription": "0xsub1",
				"result":       map[string]interface{}{"number": "0x1", "hash": "0x"},
			},
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	heads, err := client.SubscribeNewHeads(ctx)
	if err != nil {
		t.Fatalf("SubscribeNewHeads: %v", err)
	}

	select {
	case head := <-heads:
		if head.Number != 1 {
			t.Errorf("delivered foreign head %d", head.Number)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for head")
	}
}

func TestWSClient_ReconnectsAndResubscribes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connCount.Add(1)

		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			conn.Close()
			return
		}
		subID := fmt.Sprintf("0xsub%d", n)
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": subID,
		})

		// Drop the first connection right after acknowledging the
		// subscription; the client has to redial and resubscribe.
		if n == 1 {
			conn.Close()
			return
		}

		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "eth_subscription",
			"params": map[string]interface{}{
				"subscription": subID,
				"result":       map[string]interface{}{"number": "0x2a", "hash": "0xhead2a"},
			},
		})

		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond

	client, err := NewWSClient(ctx, wsURL(server), &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	heads, err := client.SubscribeNewHeads(ctx)
	if err != nil {
		t.Fatalf("SubscribeNewHeads: %v", err)
	}

	select {
	case head := <-heads:
		if head.Number != 42 {
			t.Errorf("head number = %d, want 42", head.Number)
		}
	case <-ctx.Done():
		t.Fatal("no head delivered after reconnect")
	}

	if got := connCount.Load(); got < 2 {
		t.Errorf("connections seen = %d, want at least 2", got)
	}
}
