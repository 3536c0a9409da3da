// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/recsys/internal/eventprocessor"
)

// startHub runs a hub until the test ends. The returned channel yields
// RunWithContext's error.
func startHub(t *testing.T) (*Hub, context.CancelFunc, <-chan error) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	t.Cleanup(cancel)
	return hub, cancel, done
}

func newTestClient(hub *Hub, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, buffer)}
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.GetClientCount(), want)
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatalf("client %d: no message", c.id)
		return Message{}, false
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, _, _ := startHub(t)
	clients := []*Client{newTestClient(hub, 4), newTestClient(hub, 4), newTestClient(hub, 4)}
	for _, c := range clients {
		hub.Register <- c
	}
	waitForClients(t, hub, len(clients))

	run := &eventprocessor.RunCompletedEvent{RunID: "run-1", State: "completed", Written: 8}
	set := &eventprocessor.SetGeneratedEvent{RunID: "run-1", TargetKey: "item_id#7", ItemCount: 2}
	if err := hub.BroadcastSetGenerated(context.Background(), set); err != nil {
		t.Fatalf("BroadcastSetGenerated() error = %v", err)
	}
	if err := hub.BroadcastRunCompleted(context.Background(), run); err != nil {
		t.Fatalf("BroadcastRunCompleted() error = %v", err)
	}

	for _, c := range clients {
		first, ok := receive(t, c)
		if !ok || first.Type != MessageTypeSetGenerated || first.Data != set {
			t.Errorf("client %d first message = %+v, want set_generated", c.id, first)
		}
		second, ok := receive(t, c)
		if !ok || second.Type != MessageTypeRunCompleted || second.Data != run {
			t.Errorf("client %d second message = %+v, want run_completed", c.id, second)
		}
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub, _, _ := startHub(t)
	c := newTestClient(hub, 1)
	hub.Register <- c
	waitForClients(t, hub, 1)

	hub.Unregister <- c
	waitForClients(t, hub, 0)
	if _, ok := receive(t, c); ok {
		t.Error("send channel still open after unregister")
	}

	// A second unregister is a no-op.
	hub.Unregister <- c
	waitForClients(t, hub, 0)
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub, _, _ := startHub(t)
	fast := newTestClient(hub, 4)
	slow := newTestClient(hub, 0)
	hub.Register <- fast
	hub.Register <- slow
	waitForClients(t, hub, 2)

	_ = hub.BroadcastRunCompleted(context.Background(), &eventprocessor.RunCompletedEvent{RunID: "run-2"})

	if msg, ok := receive(t, fast); !ok || msg.Type != MessageTypeRunCompleted {
		t.Errorf("fast client message = %+v, open=%v", msg, ok)
	}
	waitForClients(t, hub, 1)
	if _, ok := receive(t, slow); ok {
		t.Error("slow client send channel still open")
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, cancel, done := startHub(t)
	clients := []*Client{newTestClient(hub, 1), newTestClient(hub, 1)}
	for _, c := range clients {
		hub.Register <- c
	}
	waitForClients(t, hub, 2)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	if n := hub.GetClientCount(); n != 0 {
		t.Errorf("client count after shutdown = %d, want 0", n)
	}
	for _, c := range clients {
		if _, ok := receive(t, c); ok {
			t.Errorf("client %d send channel still open", c.id)
		}
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()
	set := &eventprocessor.SetGeneratedEvent{RunID: "run-3"}
	for i := 0; i < broadcastBufferSize+10; i++ {
		if err := hub.BroadcastSetGenerated(context.Background(), set); err != nil {
			t.Fatalf("BroadcastSetGenerated() error = %v", err)
		}
	}
	if err := hub.BroadcastRunCompleted(context.Background(), &eventprocessor.RunCompletedEvent{RunID: "run-3"}); err != nil {
		t.Fatalf("BroadcastRunCompleted() error = %v", err)
	}
	if got := len(hub.broadcast); got != broadcastBufferSize {
		t.Errorf("queued = %d, want %d", got, broadcastBufferSize)
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		want ShutdownReason
	}{
		{"canceled", canceled, ShutdownReasonContextCanceled},
		{"deadline", expired, ShutdownReasonContextDeadline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getShutdownReason(tt.ctx); got != tt.want {
				t.Errorf("getShutdownReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHub_String(t *testing.T) {
	if got := NewHub().String(); got != "websocket-hub" {
		t.Errorf("String() = %q", got)
	}
}

func TestClient_EndToEnd(t *testing.T) {
	hub, _, _ := startHub(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForClients(t, hub, 1)

	readMessage := func() (string, json.RawMessage) {
		t.Helper()
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatalf("set read deadline: %v", err)
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var envelope struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil {
			t.Fatalf("decode %s: %v", payload, err)
		}
		return envelope.Type, envelope.Data
	}

	t.Run("set_generated", func(t *testing.T) {
		_ = hub.BroadcastSetGenerated(context.Background(), &eventprocessor.SetGeneratedEvent{
			RunID: "run-1", Model: "item_similarity", TargetKey: "item_id#7", ItemCount: 2,
		})
		msgType, data := readMessage()
		if msgType != MessageTypeSetGenerated {
			t.Fatalf("type = %q, want %q", msgType, MessageTypeSetGenerated)
		}
		var got eventprocessor.SetGeneratedEvent
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if got.RunID != "run-1" || got.TargetKey != "item_id#7" || got.ItemCount != 2 {
			t.Errorf("data = %+v", got)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
			t.Fatalf("write ping: %v", err)
		}
		if msgType, _ := readMessage(); msgType != MessageTypePong {
			t.Errorf("type = %q, want %q", msgType, MessageTypePong)
		}
	})

	if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		t.Fatalf("write close: %v", err)
	}
	_ = conn.Close()
	waitForClients(t, hub, 0)
}
