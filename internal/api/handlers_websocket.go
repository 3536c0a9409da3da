// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/recsys/internal/logging"
	ws "github.com/tomtom215/recsys/internal/websocket"
)

// SetHub enables GET /ws. Browser clients must send an Origin listed in
// allowedOrigins; "*" allows any origin.
func (h *Handler) SetHub(hub *ws.Hub, allowedOrigins []string) {
	h.wsHub = hub
	h.wsOrigins = allowedOrigins
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin rejects requests without an Origin header. Browsers
// always send one, so an empty Origin would bypass CORS.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.wsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and streams run progress events.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
