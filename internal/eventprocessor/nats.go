// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// NATSConfig holds the client connection settings shared by the NATS
// publisher and subscriber. Events are fire-and-forget notifications, so
// core NATS is used rather than JetStream.
type NATSConfig struct {
	URL             string
	ClientName      string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
	AckWaitTimeout  time.Duration
	CloseTimeout    time.Duration
}

// DefaultNATSConfig returns client defaults for url.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:             url,
		ClientName:      "recsys",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		AckWaitTimeout:  30 * time.Second,
		CloseTimeout:    10 * time.Second,
	}
}

// natsOptions builds connection options with reconnection handling.
func natsOptions(cfg NATSConfig, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name(cfg.ClientName),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
}

// NewNATSPublisher creates a Watermill publisher on core NATS.
func NewNATSPublisher(cfg NATSConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOptions(cfg, logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// NewNATSSubscriber creates a Watermill subscriber on core NATS. Every
// subscriber receives every message; there is no queue group.
func NewNATSSubscriber(cfg NATSConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOptions(cfg, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}

// NewGoChannel creates the in-process pub/sub used when events never leave
// the process (scheduled runs inside the server, tests).
func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		PreserveContext:     true,
	}, logger)
}
