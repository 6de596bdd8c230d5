package solana

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// echoServer keeps the connection open and ignores everything it reads.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_Connect(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, quietLogger())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		// Read subscribe request
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}

		if req.Method != "logsSubscribe" {
			t.Errorf("expected logsSubscribe, got %s", req.Method)
		}

		// The commitment parameter must request pending transactions
		params, _ := json.Marshal(req.Params)
		if !strings.Contains(string(params), subscribeCommitment) {
			t.Errorf("expected commitment %q in params: %s", subscribeCommitment, params)
		}

		// Send subscription confirmation
		resp := wsSubscribeResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  12345, // subscription ID
		}
		if err := c.WriteJSON(resp); err != nil {
			t.Errorf("write response: %v", err)
			return
		}

		// Send a log notification
		time.Sleep(50 * time.Millisecond)
		notif := wsNotification{
			JSONRPC: "2.0",
			Method:  "logsNotification",
			Params: &wsNotificationParams{
				Subscription: 12345,
				Result: wsNotificationResult{
					Context: &wsContext{Slot: 100},
					Value: wsLogsValue{
						Signature: "testsig",
						Logs:      []string{"Program log: Test"},
						Err:       nil,
					},
				},
			},
		}
		if err := c.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		// Keep connection open
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, quietLogger())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{
		Mentions: []string{"testprogram"},
	})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("expected 1 log, got %d", len(notif.Logs))
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_Close(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, quietLogger())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// Double close should be safe
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, quietLogger())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	client.Close()

	if _, err := client.SubscribeLogs(ctx, LogsFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClient_CustomConfig(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	config := &WSClientConfig{
		ReconnectDelay:   100 * time.Millisecond,
		PingInterval:     5 * time.Second,
		ReadTimeout:      10 * time.Second,
		WriteTimeout:     5 * time.Second,
		SubscribeTimeout: 5 * time.Second,
		NotifyBuffer:     100,
	}

	client, err := NewWSClient(context.Background(), wsURL(server), config, quietLogger())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.config.PingInterval != 5*time.Second {
		t.Errorf("expected PingInterval 5s, got %v", client.config.PingInterval)
	}
}
