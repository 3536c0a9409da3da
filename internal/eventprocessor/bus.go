// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recsys/internal/config"
	"github.com/tomtom215/recsys/internal/logging"
)

// Supported drivers.
const (
	DriverGoChannel = "gochannel"
	DriverNATS      = "nats"
)

// Bus bundles the publisher, the subscriber and, when configured, the
// embedded NATS server for one process.
type Bus struct {
	publisher  *Publisher
	subscriber message.Subscriber
	server     *EmbeddedServer
	topics     Topics
	driver     string
	url        string
	logger     zerolog.Logger
}

// NewBus builds the event bus described by cfg. withSubscriber also opens a
// subscriber; the batch CLI only publishes.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBus(cfg *config.EventsConfig, withSubscriber bool, logger zerolog.Logger) (*Bus, error) {
	if cfg == nil {
		return nil, errors.New("events config is nil")
	}

	wmLogger := logging.NewWatermillAdapter(logger)
	b := &Bus{
		topics: Topics{Prefix: cfg.TopicPrefix},
		driver: cfg.Driver,
		logger: logger.With().Str("component", "events").Logger(),
	}

	switch cfg.Driver {
	case DriverGoChannel, "":
		b.driver = DriverGoChannel
		pubsub := NewGoChannel(wmLogger)
		b.publisher = NewPublisher(pubsub, b.topics, wmLogger)
		if withSubscriber {
			b.subscriber = pubsub
		}

	case DriverNATS:
		b.url = cfg.URL
		if cfg.EmbeddedServer {
			srv, err := NewEmbeddedServer(ServerConfig{Port: cfg.EmbeddedPort})
			if err != nil {
				return nil, err
			}
			b.server = srv
			b.url = srv.ClientURL()
		}

		natsCfg := DefaultNATSConfig(b.url)
		if cfg.ClientName != "" {
			natsCfg.ClientName = cfg.ClientName
		}

		pub, err := NewNATSPublisher(natsCfg, wmLogger)
		if err != nil {
			b.shutdownServer()
			return nil, err
		}
		b.publisher = NewPublisher(pub, b.topics, wmLogger)

		if withSubscriber {
			sub, err := NewNATSSubscriber(natsCfg, wmLogger)
			if err != nil {
				closeQuietly(b.publisher)
				b.shutdownServer()
				return nil, err
			}
			b.subscriber = sub
		}

	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}

	b.logger.Info().
		Str("driver", b.driver).
		Str("url", b.url).
		Bool("embedded", b.server != nil).
		Str("prefix", cfg.TopicPrefix).
		Msg("Event bus ready")

	return b, nil
}

// Publisher returns the pipeline event publisher.
func (b *Bus) Publisher() *Publisher { return b.publisher }

// Subscriber returns the subscriber, or nil when none was requested.
func (b *Bus) Subscriber() message.Subscriber { return b.subscriber }

// Topics returns the configured subjects.
func (b *Bus) Topics() Topics { return b.topics }

// Driver returns the active driver name.
func (b *Bus) Driver() string { return b.driver }

// URL returns the NATS URL in use, empty for gochannel.
func (b *Bus) URL() string { return b.url }

// Close shuts down the publisher, the subscriber and the embedded server.
func (b *Bus) Close() error {
	var errs []error
	if b.publisher != nil {
		if err := b.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if b.subscriber != nil {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if err := b.shutdownServer(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Bus) shutdownServer() error {
	if b.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := b.server.Shutdown(ctx)
	b.server = nil
	if err != nil {
		return fmt.Errorf("shutdown embedded NATS: %w", err)
	}
	return nil
}

type closer interface{ Close() error }

func closeQuietly(c closer) {
	if c != nil {
		_ = c.Close()
	}
}
