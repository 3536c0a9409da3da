// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultNATSImage is the official NATS server image.
	DefaultNATSImage = "nats:2.12-alpine"

	// DefaultNATSPort is the client port.
	DefaultNATSPort = "4222"

	// natsMonitorPort serves /healthz.
	natsMonitorPort = "8222"
)

// NATSContainer is a running NATS server for integration tests.
type NATSContainer struct {
	testcontainers.Container
	URL string
}

// NATSOption configures the NATS container.
type NATSOption func(*natsConfig)

type natsConfig struct {
	image        string
	startTimeout time.Duration
}

// WithNATSImage sets a custom NATS image.
func WithNATSImage(image string) NATSOption {
	return func(c *natsConfig) {
		c.image = image
	}
}

// WithStartTimeout sets how long to wait for the server to report healthy.
func WithStartTimeout(timeout time.Duration) NATSOption {
	return func(c *natsConfig) {
		c.startTimeout = timeout
	}
}

// NewNATSContainer starts a NATS server and returns its client URL.
func NewNATSContainer(ctx context.Context, opts ...NATSOption) (*NATSContainer, error) {
	cfg := &natsConfig{
		image:        DefaultNATSImage,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultNATSPort + "/tcp", natsMonitorPort + "/tcp"},
		Cmd:          []string{"--http_port", natsMonitorPort},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultNATSPort+"/tcp"),
			wait.ForHTTP("/healthz").WithPort(natsMonitorPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultNATSPort+"/tcp")
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &NATSContainer{
		Container: container,
		URL:       fmt.Sprintf("nats://%s:%s", host, port.Port()),
	}, nil
}
