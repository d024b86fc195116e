package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reviewhub/internal/queue"
	"reviewhub/internal/validation"

	"github.com/common-nighthawk/go-figure"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type deliverySource interface {
	Consume() (<-chan amqp.Delivery, error)
	Close() error
}

// Processor drives the validation orchestrator from the submitted-event
// queue. Each delivery is acked only after the orchestrator returns nil;
// an error nacks with requeue so the broker redelivers.
type Processor struct {
	config           Config
	logger           *zap.SugaredLogger
	consumer         deliverySource
	orchestrator     *validation.Orchestrator
	shutdownChan     chan os.Signal
	resubscribeDelay time.Duration
	ctx              context.Context
	cancel           context.CancelFunc
}

func NewProcessor(config Config, consumer deliverySource, orchestrator *validation.Orchestrator, logger *zap.SugaredLogger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		config:           config,
		logger:           logger,
		consumer:         consumer,
		orchestrator:     orchestrator,
		shutdownChan:     make(chan os.Signal, 1),
		resubscribeDelay: 5 * time.Second,
		ctx:              ctx,
		cancel:           cancel,
	}
}

func (p *Processor) Start() error {
	signal.Notify(p.shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		figure.NewFigure("WORKER", "", true).Print()
		p.logger.Info("starting event consumption")
		if err := p.consumeEvents(); err != nil {
			p.logger.Errorw("event consumption failed", "error", err)
		}
	}()

	<-p.shutdownChan
	p.logger.Info("received shutdown signal, starting graceful shutdown")

	return p.shutdown()
}

// consumeEvents subscribes and drains deliveries until shutdown. A
// closed delivery channel means the subscription died with its broker
// connection; the consumer reconnects on its own, so re-subscribe
// instead of returning.
func (p *Processor) consumeEvents() error {
	for {
		deliveries, err := p.consumer.Consume()
		if err != nil {
			p.logger.Errorw("failed to start consuming, retrying", "error", err)
			if !p.waitForResubscribe() {
				return nil
			}
			continue
		}

		if done := p.drainDeliveries(deliveries); done {
			return nil
		}

		p.logger.Warn("delivery channel closed, resubscribing")
		if !p.waitForResubscribe() {
			return nil
		}
	}
}

// drainDeliveries returns true on shutdown, false when the channel
// closed and the subscription must be re-established.
func (p *Processor) drainDeliveries(deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-p.ctx.Done():
			return true
		case delivery, ok := <-deliveries:
			if !ok {
				return false
			}
			p.handleDelivery(delivery)
		}
	}
}

func (p *Processor) waitForResubscribe() bool {
	select {
	case <-p.ctx.Done():
		return false
	case <-time.After(p.resubscribeDelay):
		return true
	}
}

func (p *Processor) handleDelivery(delivery amqp.Delivery) {
	var event queue.SubmittedEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		// A payload that cannot be decoded will never succeed; drop it.
		p.logger.Errorw("undecodable event payload, discarding",
			"message_id", delivery.MessageId, "error", err)
		if err := delivery.Nack(false, false); err != nil {
			p.logger.Warnw("nack failed", "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, time.Duration(p.config.HandlerTimeoutSeconds)*time.Second)
	defer cancel()

	if err := p.orchestrator.Handle(ctx, event); err != nil {
		p.logger.Errorw("event handling failed, requeueing",
			"review_id", event.ReviewID, "error", err)
		if err := delivery.Nack(false, true); err != nil {
			p.logger.Warnw("nack failed", "review_id", event.ReviewID, "error", err)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		p.logger.Warnw("ack failed", "review_id", event.ReviewID, "error", err)
	}
}

func (p *Processor) shutdown() error {
	p.cancel()

	if err := p.consumer.Close(); err != nil {
		p.logger.Warnw("consumer close failed", "error", err)
	}

	p.logger.Info("worker stopped")
	return nil
}
