package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	DBAddr        string `mapstructure:"db_addr"`
	DBMaxConns    int    `mapstructure:"db_max_conns"`
	DBMaxIdleTime string `mapstructure:"db_max_idle_time"`

	AMQPURL        string `mapstructure:"amqp_url"`
	SubmittedQueue string `mapstructure:"submitted_queue"`
	PrefetchCount  int    `mapstructure:"prefetch_count"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	GatewayURL                 string  `mapstructure:"gateway_url"`
	GatewayAPIKey              string  `mapstructure:"gateway_api_key"`
	GatewayTimeoutSeconds      int     `mapstructure:"gateway_timeout_seconds"`
	GatewayRateLimit           float64 `mapstructure:"gateway_rate_limit"`
	GatewayBurstLimit          int     `mapstructure:"gateway_burst_limit"`
	GatewayMaxRetries          int     `mapstructure:"gateway_max_retries"`
	CircuitBreakerMaxFailures  int     `mapstructure:"circuit_breaker_max_failures"`
	CircuitBreakerResetSeconds int     `mapstructure:"circuit_breaker_reset_seconds"`

	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	FromEmail    string `mapstructure:"from_email"`

	HandlerTimeoutSeconds int `mapstructure:"handler_timeout_seconds"`
}

func loadConfig() Config {
	if err := gotenv.Load("../.env"); err != nil {
		_ = gotenv.Load()
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	var config Config
	if err := viper.UnmarshalKey("worker", &config); err != nil {
		panic(err)
	}

	config.DBAddr = os.ExpandEnv(config.DBAddr)
	config.AMQPURL = os.ExpandEnv(config.AMQPURL)
	config.RedisPassword = os.ExpandEnv(config.RedisPassword)
	config.GatewayAPIKey = os.ExpandEnv(config.GatewayAPIKey)
	config.SMTPPassword = os.ExpandEnv(config.SMTPPassword)

	applyDefaults(&config)

	if config.DBAddr == "" || config.AMQPURL == "" || config.GatewayURL == "" {
		panic(fmt.Errorf("worker config is missing db_addr, amqp_url or gateway_url"))
	}

	return config
}

func applyDefaults(config *Config) {
	if config.DBMaxConns == 0 {
		config.DBMaxConns = 10
	}
	if config.DBMaxIdleTime == "" {
		config.DBMaxIdleTime = "15m"
	}
	if config.SubmittedQueue == "" {
		config.SubmittedQueue = "review.submitted"
	}
	if config.PrefetchCount == 0 {
		config.PrefetchCount = 10
	}
	if config.GatewayTimeoutSeconds == 0 {
		config.GatewayTimeoutSeconds = 10
	}
	if config.GatewayRateLimit == 0 {
		config.GatewayRateLimit = 10.0
	}
	if config.GatewayBurstLimit == 0 {
		config.GatewayBurstLimit = 20
	}
	if config.GatewayMaxRetries == 0 {
		config.GatewayMaxRetries = 2
	}
	if config.CircuitBreakerMaxFailures == 0 {
		config.CircuitBreakerMaxFailures = 3
	}
	if config.CircuitBreakerResetSeconds == 0 {
		config.CircuitBreakerResetSeconds = 30
	}
	if config.HandlerTimeoutSeconds == 0 {
		config.HandlerTimeoutSeconds = 30
	}
}
