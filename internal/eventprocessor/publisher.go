// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/recsys/internal/metrics"
	"github.com/tomtom215/recsys/internal/recommend"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher publishes pipeline events over any Watermill publisher
// (gochannel in-process, NATS across processes).
// It implements recommend.EventPublisher.
type Publisher struct {
	publisher message.Publisher
	topics    Topics
	mu        sync.RWMutex
	closed    bool
	logger    watermill.LoggerAdapter
}

var _ recommend.EventPublisher = (*Publisher)(nil)

// NewPublisher wraps pub.
func NewPublisher(pub message.Publisher, topics Topics, logger watermill.LoggerAdapter) *Publisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Publisher{
		publisher: pub,
		topics:    topics,
		logger:    logger,
	}
}

// Publish sends a message to the specified topic.
// The message UUID is used as Nats-Msg-Id if not already set.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	msg.SetContext(ctx)

	err := p.publisher.Publish(topic, msg)
	metrics.RecordEventPublish(topic, err)
	if err != nil {
		p.logger.Error("Event publish failed", err, watermill.LogFields{"topic": topic, "uuid": msg.UUID})
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishSetGenerated announces one written recommendation set.
func (p *Publisher) PublishSetGenerated(ctx context.Context, set *recommend.RecommendationSet) error {
	event := NewSetGeneratedEvent(set)
	data, err := marshalEvent(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set("run_id", event.RunID)
	msg.Metadata.Set("model", event.Model)
	msg.Metadata.Set("target_key", event.TargetKey)

	return p.Publish(ctx, p.topics.SetGenerated(), msg)
}

// PublishRunCompleted announces a finished run.
func (p *Publisher) PublishRunCompleted(ctx context.Context, report *recommend.RunReport) error {
	event := NewRunCompletedEvent(report)
	data, err := marshalEvent(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set("run_id", event.RunID)
	msg.Metadata.Set("state", event.State)
	msg.Metadata.Set("written", strconv.FormatInt(event.Written, 10))

	return p.Publish(ctx, p.topics.RunCompleted(), msg)
}

// Topics returns the subjects this publisher writes to.
func (p *Publisher) Topics() Topics {
	return p.topics
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}
