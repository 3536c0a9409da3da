// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recsys/internal/metrics"
)

// RunCompletedHandler reacts to a finished run.
type RunCompletedHandler func(ctx context.Context, event *RunCompletedEvent) error

// SetGeneratedHandler reacts to one persisted recommendation set.
type SetGeneratedHandler func(ctx context.Context, event *SetGeneratedEvent) error

// Consumer delivers the decoded events of one topic to a handler.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	kind       string
	decode     func([]byte) (*T, error)
	runID      func(*T) string
	handler    func(context.Context, *T) error
	logger     zerolog.Logger
}

// NewRunCompletedConsumer creates a consumer on topics.RunCompleted().
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRunCompletedConsumer(sub message.Subscriber, topics Topics, handler RunCompletedHandler, logger zerolog.Logger) *Consumer[RunCompletedEvent] {
	return newConsumer(sub, topics.RunCompleted(), "run", DecodeRunCompleted,
		func(e *RunCompletedEvent) string { return e.RunID }, handler, logger)
}

// NewSetGeneratedConsumer creates a consumer on topics.SetGenerated().
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSetGeneratedConsumer(sub message.Subscriber, topics Topics, handler SetGeneratedHandler, logger zerolog.Logger) *Consumer[SetGeneratedEvent] {
	return newConsumer(sub, topics.SetGenerated(), "set", DecodeSetGenerated,
		func(e *SetGeneratedEvent) string { return e.RunID }, handler, logger)
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func newConsumer[T any](sub message.Subscriber, topic, kind string, decode func([]byte) (*T, error), runID func(*T) string, handler func(context.Context, *T) error, logger zerolog.Logger) *Consumer[T] {
	return &Consumer[T]{
		subscriber: sub,
		topic:      topic,
		kind:       kind,
		decode:     decode,
		runID:      runID,
		handler:    handler,
		logger:     logger.With().Str("component", kind+"-events").Str("topic", topic).Logger(),
	}
}

// Run consumes until ctx is cancelled or the subscription closes.
// Messages are always acked: a payload that cannot be decoded or handled is
// logged and dropped so it is not redelivered forever.
func (c *Consumer[T]) Run(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	c.logger.Debug().Msg(c.kind + " event consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer[T]) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()
	metrics.RecordEventConsume(c.topic)

	event, err := c.decode(msg.Payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("uuid", msg.UUID).Msg("dropping malformed " + c.kind + " event")
		return
	}

	if err := c.handler(ctx, event); err != nil {
		c.logger.Error().Err(err).Str("run_id", c.runID(event)).Msg(c.kind + " event handler failed")
		return
	}

	c.logger.Debug().Str("run_id", c.runID(event)).Msg(c.kind + " event handled")
}

// String identifies the consumer in supervisor logs.
func (c *Consumer[T]) String() string {
	return c.kind + "-events-consumer"
}

// Serve implements suture.Service.
func (c *Consumer[T]) Serve(ctx context.Context) error {
	return c.Run(ctx)
}
