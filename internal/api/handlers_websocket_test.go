// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/recsys/internal/eventprocessor"
	ws "github.com/tomtom215/recsys/internal/websocket"
)

func TestWebSocket_NoHub(t *testing.T) {
	srv := NewRouter(NewHandler(newTestStore(), nil), nil).SetupChi()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestWebSocket_Stream(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.RunWithContext(ctx) }()

	handler := NewHandler(newTestStore(), nil)
	handler.SetHub(hub, []string{"https://app.example.com"})
	server := httptest.NewServer(NewRouter(handler, nil).SetupChi())
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	dial := func(origin string) (*websocket.Conn, int, error) {
		header := http.Header{}
		if origin != "" {
			header.Set("Origin", origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		status := 0
		if resp != nil {
			status = resp.StatusCode
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return conn, status, err
	}

	rejected := []struct {
		name   string
		origin string
	}{
		{"missing origin", ""},
		{"unlisted origin", "https://evil.example.com"},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			conn, status, err := dial(tt.origin)
			if err == nil {
				_ = conn.Close()
				t.Fatal("dial succeeded, want rejection")
			}
			if status != http.StatusForbidden {
				t.Errorf("status = %d, want %d", status, http.StatusForbidden)
			}
		})
	}

	t.Run("allowed origin", func(t *testing.T) {
		conn, _, err := dial("https://app.example.com")
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for hub.GetClientCount() != 1 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if n := hub.GetClientCount(); n != 1 {
			t.Fatalf("client count = %d, want 1", n)
		}

		_ = hub.BroadcastRunCompleted(context.Background(), &eventprocessor.RunCompletedEvent{RunID: "run-9", State: "completed"})

		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatalf("set read deadline: %v", err)
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg struct {
			Type string                           `json:"type"`
			Data eventprocessor.RunCompletedEvent `json:"data"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode %s: %v", payload, err)
		}
		if msg.Type != ws.MessageTypeRunCompleted || msg.Data.RunID != "run-9" {
			t.Errorf("message = %+v", msg)
		}
	})
}
