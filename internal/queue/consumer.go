package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	URL                  string
	QueueName            string
	PrefetchCount        int
	RetryBaseDelay       time.Duration
	MaxRetryDelay        time.Duration
	ConnectionTimeout    time.Duration
	HeartbeatInterval    time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
}

func NewConsumerConfig(url, queueName string, prefetchCount int) *ConsumerConfig {
	return &ConsumerConfig{
		URL:                  url,
		QueueName:            queueName,
		PrefetchCount:        prefetchCount,
		RetryBaseDelay:       time.Second,
		MaxRetryDelay:        30 * time.Second,
		ConnectionTimeout:    10 * time.Second,
		HeartbeatInterval:    10 * time.Second,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

// Consumer wraps one AMQP connection/channel pair with reconnection and
// a circuit breaker around consume attempts. Deliveries are handed to
// the caller unacked; ack/nack is the caller's contract.
type Consumer struct {
	config         *ConsumerConfig
	logger         *zap.SugaredLogger
	conn           *amqp.Connection
	channel        *amqp.Channel
	circuitBreaker *gobreaker.CircuitBreaker
	mu             sync.RWMutex
	closed         int64
	ctx            context.Context
	cancel         context.CancelFunc
}

func NewConsumer(config *ConsumerConfig, logger *zap.SugaredLogger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	cbSettings := gobreaker.Settings{
		Name:        "rabbitmq-connection",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Infow("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	consumer := &Consumer{
		config:         config,
		logger:         logger,
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		ctx:            ctx,
		cancel:         cancel,
	}

	if err := consumer.connect(); err != nil {
		logger.Errorw("initial connection failed", "error", err)
	}

	go consumer.reconnectLoop()
	go consumer.healthCheckLoop()

	return consumer
}

func (c *Consumer) connect() error {
	return c.connectWithRetry(c.config.MaxReconnectAttempts)
}

func (c *Consumer) connectWithRetry(maxAttempts int) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if atomic.LoadInt64(&c.closed) == 1 {
			return fmt.Errorf("consumer is closed")
		}

		err := c.doConnect()
		if err == nil {
			c.logger.Infow("connected to RabbitMQ", "attempt", attempt)
			return nil
		}

		lastErr = err
		c.logger.Warnw("connection attempt failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err)

		if attempt < maxAttempts {
			select {
			case <-c.ctx.Done():
				return c.ctx.Err()
			case <-time.After(c.backoffDelay(attempt)):
			}
		}
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Consumer) doConnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Close()
	}

	config := amqp.Config{
		Heartbeat: c.config.HeartbeatInterval,
		Dial:      amqp.DefaultDial(c.config.ConnectionTimeout),
	}

	conn, err := amqp.DialConfig(c.config.URL, config)
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(c.config.QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.Qos(c.config.PrefetchCount, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	c.conn = conn
	c.channel = ch

	go c.watchConnection()

	return nil
}

func (c *Consumer) Consume() (<-chan amqp.Delivery, error) {
	if atomic.LoadInt64(&c.closed) == 1 {
		return nil, fmt.Errorf("consumer is closed")
	}

	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		c.mu.RLock()
		defer c.mu.RUnlock()

		if c.channel == nil {
			return nil, fmt.Errorf("channel is not available")
		}

		deliveries, err := c.channel.Consume(
			c.config.QueueName,
			"",
			false,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to start consuming: %w", err)
		}

		wrappedChan := make(chan amqp.Delivery)
		go func() {
			defer close(wrappedChan)
			for delivery := range deliveries {
				wrappedChan <- delivery
			}
		}()

		return wrappedChan, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(chan amqp.Delivery), nil
}

func (c *Consumer) HealthCheck() error {
	if atomic.LoadInt64(&c.closed) == 1 {
		return fmt.Errorf("consumer is closed")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || c.conn.IsClosed() {
		return fmt.Errorf("connection is not available")
	}
	if c.channel == nil {
		return fmt.Errorf("channel is not available")
	}
	return nil
}

func (c *Consumer) Close() error {
	if !atomic.CompareAndSwapInt64(&c.closed, 0, 1) {
		return nil
	}

	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	c.logger.Info("RabbitMQ consumer closed")
	return nil
}

func (c *Consumer) backoffDelay(attempt int) time.Duration {
	delay := c.config.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > c.config.MaxRetryDelay {
		delay = c.config.MaxRetryDelay
	}
	return delay
}

func (c *Consumer) watchConnection() {
	closeChan := make(chan *amqp.Error)
	c.conn.NotifyClose(closeChan)

	select {
	case err := <-closeChan:
		if err != nil {
			c.logger.Warnw("connection closed unexpectedly", "error", err)
		}
	case <-c.ctx.Done():
	}
}

func (c *Consumer) reconnectLoop() {
	ticker := time.NewTicker(c.config.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if atomic.LoadInt64(&c.closed) == 1 {
				return
			}

			c.mu.RLock()
			needReconnect := c.conn == nil || c.conn.IsClosed() || c.channel == nil
			c.mu.RUnlock()

			if needReconnect {
				c.logger.Info("attempting to reconnect")
				if err := c.connectWithRetry(c.config.MaxReconnectAttempts); err != nil {
					c.logger.Errorw("reconnection failed", "error", err)
				}
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) healthCheckLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.HealthCheck(); err != nil {
				c.logger.Warnw("health check failed", "error", err)
			}
		case <-c.ctx.Done():
			return
		}
	}
}
