package main

import (
	"fmt"
	"os"
	"time"

	"reviewhub/internal/compliance"
	"reviewhub/internal/db"
	"reviewhub/internal/locks"
	"reviewhub/internal/mailer"
	"reviewhub/internal/queue"
	"reviewhub/internal/store"
	"reviewhub/internal/validation"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	level := zapcore.InfoLevel

	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), level)

	logger := zap.New(core)

	return logger.Sugar(), nil
}

func main() {
	cfg := loadConfig()

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	pool, err := db.New(cfg.DBAddr, int32(cfg.DBMaxConns), cfg.DBMaxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	storage := store.NewStorage(pool)

	gateway := compliance.NewGateway(&compliance.Config{
		BaseURL:       cfg.GatewayURL,
		APIKey:        cfg.GatewayAPIKey,
		Timeout:       time.Duration(cfg.GatewayTimeoutSeconds) * time.Second,
		RateLimit:     cfg.GatewayRateLimit,
		BurstLimit:    cfg.GatewayBurstLimit,
		MaxRetries:    cfg.GatewayMaxRetries,
		RetryInterval: time.Second,
		CircuitBreaker: &compliance.CircuitBreakerConfig{
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     time.Duration(cfg.CircuitBreakerResetSeconds) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cfg.CircuitBreakerMaxFailures)
			},
		},
	}, logger)

	smtp, err := mailer.NewSMTPClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromEmail)
	if err != nil {
		logger.Fatal(err)
	}

	var locker validation.Locker
	if cfg.RedisAddr != "" {
		reviewLock := locks.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer reviewLock.Close()
		locker = reviewLock
		logger.Info("redis dedup lock enabled")
	} else {
		logger.Warn("redis not configured, running without dedup lock")
	}

	orchestrator := validation.NewOrchestrator(storage.Reviews, gateway, smtp, locker, logger)

	consumer := queue.NewConsumer(
		queue.NewConsumerConfig(cfg.AMQPURL, cfg.SubmittedQueue, cfg.PrefetchCount),
		logger,
	)

	processor := NewProcessor(cfg, consumer, orchestrator, logger)
	if err := processor.Start(); err != nil {
		logger.Fatal(err)
	}
}
