// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package eventprocessor

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/recsys/internal/logging"
)

// syncBuffer guards a log buffer written by the consumer goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunCompletedConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := NewGoChannel(watermill.NopLogger{})
	defer pubsub.Close()
	topics := Topics{Prefix: "test"}

	var logs syncBuffer
	received := make(chan *RunCompletedEvent, 4)
	consumer := NewRunCompletedConsumer(pubsub, topics, func(_ context.Context, e *RunCompletedEvent) error {
		received <- e
		if e.RunID == "run-fail" {
			return errors.New("handler failed")
		}
		return nil
	}, logging.NewTestLogger(&logs))

	done := make(chan error, 1)
	go func() { done <- consumer.Serve(ctx) }()

	pub := NewPublisher(pubsub, topics, nil)

	// Subscribe happens inside Serve; wait until the topic has a subscriber.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := pubsub.Publish(topics.RunCompleted(), message.NewMessage("malformed", []byte("{bad"))); err != nil {
			t.Fatalf("publish malformed: %v", err)
		}
		if strings.Contains(logs.String(), "dropping malformed run event") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("consumer never subscribed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	failing := testReport()
	failing.RunID = "run-fail"
	if err := pub.PublishRunCompleted(ctx, failing); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := pub.PublishRunCompleted(ctx, testReport()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var ids []string
	for len(ids) < 2 {
		select {
		case e := <-received:
			ids = append(ids, e.RunID)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %v, want two events", ids)
		}
	}
	// gochannel does not order deliveries across publishes.
	sort.Strings(ids)
	if ids[0] != "run-1" || ids[1] != "run-fail" {
		t.Errorf("received %v, want run-1 and run-fail", ids)
	}

	cancel()
	select {
	case err := <-done:
		// Cancellation also closes the subscription channel; either exit is clean.
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want nil or context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	if consumer.String() != "run-events-consumer" {
		t.Errorf("String() = %q", consumer.String())
	}
}

func TestSetGeneratedConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := NewGoChannel(watermill.NopLogger{})
	defer pubsub.Close()
	topics := Topics{Prefix: "test"}

	var logs syncBuffer
	received := make(chan *SetGeneratedEvent, 4)
	consumer := NewSetGeneratedConsumer(pubsub, topics, func(_ context.Context, e *SetGeneratedEvent) error {
		received <- e
		return nil
	}, logging.NewTestLogger(&logs))

	done := make(chan error, 1)
	go func() { done <- consumer.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := pubsub.Publish(topics.SetGenerated(), message.NewMessage("malformed", []byte(`{"event_id":""}`))); err != nil {
			t.Fatalf("publish malformed: %v", err)
		}
		if strings.Contains(logs.String(), "dropping malformed set event") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("consumer never subscribed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := NewPublisher(pubsub, topics, nil).PublishSetGenerated(ctx, testSet()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case e := <-received:
		if e.RunID != "run-1" || e.TargetKey != "item_id#7" || e.ItemCount != 2 {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("set event not delivered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want nil or context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	if consumer.String() != "set-events-consumer" {
		t.Errorf("String() = %q", consumer.String())
	}
}
