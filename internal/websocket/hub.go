// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recsys/internal/eventprocessor"
	"github.com/tomtom215/recsys/internal/logging"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types.
const (
	MessageTypeRunCompleted = "run_completed"
	MessageTypeSetGenerated = "set_generated"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

const broadcastBufferSize = 256

// Message is the envelope written to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. It does nothing until Serve runs.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, broadcastBufferSize),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext processes registrations and broadcasts until ctx is done,
// then closes every client.
//
// Shutdown is checked first, then client lifecycle events, then broadcasts,
// so a client registered before a broadcast always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// String identifies the hub in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client disconnected")
}

// unregister hands the client back to the hub. It gives up after writeWait
// when the hub is no longer running.
func (h *Hub) unregister(client *Client) {
	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case h.Unregister <- client:
	case <-timer.C:
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns the clients in id order. Caller holds mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients delivers message in client id order. Clients whose
// send buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}

	for _, client := range slow {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("dropping slow websocket client")
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
}

// enqueue queues a message without blocking. It reports whether the
// message was accepted.
func (h *Hub) enqueue(message Message) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// BroadcastRunCompleted sends a run_completed message. Its signature
// matches eventprocessor.RunCompletedHandler. It never fails: a full
// buffer drops the message.
func (h *Hub) BroadcastRunCompleted(_ context.Context, event *eventprocessor.RunCompletedEvent) error {
	if !h.enqueue(Message{Type: MessageTypeRunCompleted, Data: event}) {
		logging.Warn().Str("run_id", event.RunID).Msg("broadcast channel full, dropping run_completed message")
		return nil
	}
	logging.Debug().Int("clients", h.GetClientCount()).Str("run_id", event.RunID).Msg("broadcast run_completed")
	return nil
}

// BroadcastSetGenerated sends a set_generated message. Its signature
// matches eventprocessor.SetGeneratedHandler.
func (h *Hub) BroadcastSetGenerated(_ context.Context, event *eventprocessor.SetGeneratedEvent) error {
	if !h.enqueue(Message{Type: MessageTypeSetGenerated, Data: event}) {
		// A large run emits one event per set; per-set drops stay at debug.
		logging.Debug().Str("run_id", event.RunID).Str("target_key", event.TargetKey).Msg("broadcast channel full, dropping set_generated message")
	}
	return nil
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage encodes a message as JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
