// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host string
	// Port 0 picks a free port (tests); server.RANDOM_PORT also works.
	Port         int
	ReadyTimeout time.Duration
}

// EmbeddedServer wraps the NATS server with lifecycle management.
// It lets a single server process accept run events from CLI runs
// without an external broker.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts an embedded NATS server.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	port := cfg.Port
	if port == 0 {
		port = server.RANDOM_PORT
	}
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	ready := cfg.ReadyTimeout
	if ready <= 0 {
		ready = 30 * time.Second
	}

	opts := &server.Options{
		ServerName: "recsys-events",
		Host:       host,
		Port:       port,
		JetStream:  false,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(ready) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within %s", ready)
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for it to exit or ctx to end.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns server health status.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}
