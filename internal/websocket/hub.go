// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

// Package websocket pushes metric snapshots to connected dashboard
// browsers. The hub fans out every snapshot version to all clients;
// clients that cannot keep up are dropped rather than allowed to stall
// the broadcast loop.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/mindtree-labs/pulseboard/internal/logging"
	"github.com/mindtree-labs/pulseboard/internal/metrics"
	"github.com/mindtree-labs/pulseboard/internal/models"
	"github.com/mindtree-labs/pulseboard/internal/snapshot"
)

// Message types exchanged with dashboard clients.
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is the envelope for all WebSocket traffic.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts snapshots to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an idle hub. Call RunWithContext to start it.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// String identifies the hub in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

// RunWithContext processes client lifecycle and broadcast events until the
// context is canceled, then closes every connected client.
//
// Selection is prioritized so client state settles before messages flow:
// shutdown first, then register/unregister, then broadcasts. Go's select
// picks randomly among ready channels, so each priority gets its own
// non-blocking pass.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("websocket client disconnected")
}

// broadcastToClients delivers a message to every client in ID order.
// Sorting keeps delivery order reproducible across runs.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("dropping slow websocket client")
	}
	if len(toRemove) > 0 {
		metrics.WebSocketClients.Set(float64(len(h.clients)))
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WebSocketClients.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// BroadcastSnapshot queues a snapshot for delivery to all clients.
// The hub never blocks a caller; if the queue is full the update is
// dropped, and the next one carries the newer state anyway.
func (h *Hub) BroadcastSnapshot(snap models.MetricSnapshot) {
	message := Message{Type: MessageTypeSnapshot, Data: snap}

	select {
	case h.broadcast <- message:
	default:
		metrics.WebSocketBroadcastsDropped.Inc()
		logging.Warn().Uint64("version", snap.Version).Msg("broadcast channel full, dropping snapshot")
	}
}

// SnapshotObserver adapts the hub to the snapshot store's observer hook.
func (h *Hub) SnapshotObserver() snapshot.Observer {
	return h.BroadcastSnapshot
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage encodes a message for the wire.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
