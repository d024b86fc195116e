package main

import (
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type fakeDeliverySource struct {
	mu       sync.Mutex
	channels []<-chan amqp.Delivery
	calls    int
}

func (f *fakeDeliverySource) Consume() (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[f.calls%len(f.channels)]
	f.calls++
	return ch, nil
}

func (f *fakeDeliverySource) Close() error { return nil }

func (f *fakeDeliverySource) consumeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestConsumeEventsResubscribesAfterChannelClose(t *testing.T) {
	// First subscription dies immediately, as it would when the broker
	// connection drops; the second stays open until shutdown.
	dead := make(chan amqp.Delivery)
	close(dead)
	alive := make(chan amqp.Delivery)

	consumer := &fakeDeliverySource{channels: []<-chan amqp.Delivery{dead, alive}}
	p := NewProcessor(Config{}, consumer, nil, zap.NewNop().Sugar())
	p.resubscribeDelay = time.Millisecond

	done := make(chan error, 1)
	go func() { done <- p.consumeEvents() }()

	deadline := time.After(2 * time.Second)
	for consumer.consumeCalls() < 2 {
		select {
		case <-deadline:
			t.Fatalf("subscription was not re-established after the channel closed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	p.cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("consumeEvents: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("consumeEvents did not stop on shutdown")
	}
}

func TestConsumeEventsStopsOnShutdown(t *testing.T) {
	alive := make(chan amqp.Delivery)
	consumer := &fakeDeliverySource{channels: []<-chan amqp.Delivery{alive}}
	p := NewProcessor(Config{}, consumer, nil, zap.NewNop().Sugar())

	done := make(chan error, 1)
	go func() { done <- p.consumeEvents() }()

	p.cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("consumeEvents: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("consumeEvents did not stop on shutdown")
	}
}
