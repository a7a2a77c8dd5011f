// Package config loads server and client configuration from environment
// variables and an optional .env file, following the priority order and
// validate/print/structured-log conventions of the original hub server's
// config.go: ENV vars > .env file > defaults.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ServerConfig holds everything cmd/opcua-server needs to bind an
// endpoint and run the publish engine/dispatcher.
type ServerConfig struct {
	Addr string `env:"OPCUA_ADDR" envDefault:":4840"`

	MaxSessions            int           `env:"OPCUA_MAX_SESSIONS" envDefault:"200"`
	MaxSubscriptionsPerSession int        `env:"OPCUA_MAX_SUBSCRIPTIONS_PER_SESSION" envDefault:"20"`
	SessionTimeout          time.Duration `env:"OPCUA_SESSION_TIMEOUT" envDefault:"60s"`

	// Admission control (shirou/gopsutil-backed resource guard).
	CPURejectThreshold float64 `env:"OPCUA_CPU_REJECT_THRESHOLD" envDefault:"90.0"`

	// Auth token signing, used only to mint/compare opaque session tokens
	// per the spec's "equality-only" authorization policy.
	AuthSigningKey string `env:"OPCUA_AUTH_SIGNING_KEY" envDefault:"development-signing-key-change-me"`

	// Optional audit egress (twmb/franz-go). Empty disables it.
	KafkaBrokers string `env:"OPCUA_KAFKA_BROKERS" envDefault:""`
	KafkaTopic   string `env:"OPCUA_KAFKA_TOPIC" envDefault:"opcua-notifications"`

	// Optional status bus (nats-io/nats.go). Empty disables it.
	NATSURL string `env:"OPCUA_NATS_URL" envDefault:""`

	MetricsAddr string `env:"OPCUA_METRICS_ADDR" envDefault:":9100"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty   bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// ClientConfig holds everything cmd/opcua-client needs to dial a server
// and drive a subscription. cmd/loadtest does not use it; it takes its
// settings from command-line flags.
type ClientConfig struct {
	ServerURL string `env:"OPCUA_SERVER_URL" envDefault:"opc.tcp://localhost:4840"`

	PublishingInterval time.Duration `env:"OPCUA_PUBLISHING_INTERVAL" envDefault:"500ms"`
	LifetimeCount      uint32        `env:"OPCUA_LIFETIME_COUNT" envDefault:"60"`
	MaxKeepAliveCount  uint32        `env:"OPCUA_MAX_KEEP_ALIVE_COUNT" envDefault:"10"`

	CommitDelay time.Duration `env:"OPCUA_COMMIT_DELAY" envDefault:"1s"`

	// Optional status bus (nats-io/nats.go). Empty disables it.
	NATSURL string `env:"OPCUA_NATS_URL" envDefault:""`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty   bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// LoadServerConfig reads ServerConfig from .env then the environment, and
// validates it. logger may be nil during early startup.
func LoadServerConfig(logger *zerolog.Logger) (*ServerConfig, error) {
	loadDotEnv(logger)

	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate server config: %w", err)
	}
	return cfg, nil
}

// LoadClientConfig reads ClientConfig from .env then the environment, and
// validates it.
func LoadClientConfig(logger *zerolog.Logger) (*ClientConfig, error) {
	loadDotEnv(logger)

	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate client config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(logger *zerolog.Logger) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
		return
	}
	if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}
}

// Validate checks ServerConfig for internally-inconsistent or
// out-of-range values.
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("OPCUA_ADDR is required")
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("OPCUA_MAX_SESSIONS must be > 0, got %d", c.MaxSessions)
	}
	if c.MaxSubscriptionsPerSession < 1 {
		return fmt.Errorf("OPCUA_MAX_SUBSCRIPTIONS_PER_SESSION must be > 0, got %d", c.MaxSubscriptionsPerSession)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("OPCUA_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %s)", c.LogLevel)
	}
	return nil
}

// Validate checks ClientConfig for internally-inconsistent or
// out-of-range values.
func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("OPCUA_SERVER_URL is required")
	}
	if c.MaxKeepAliveCount == 0 {
		return fmt.Errorf("OPCUA_MAX_KEEP_ALIVE_COUNT must be > 0")
	}
	if c.LifetimeCount < c.MaxKeepAliveCount*3 {
		return fmt.Errorf("OPCUA_LIFETIME_COUNT (%d) should be at least 3x OPCUA_MAX_KEEP_ALIVE_COUNT (%d)",
			c.LifetimeCount, c.MaxKeepAliveCount)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %s)", c.LogLevel)
	}
	return nil
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Print writes a human-readable dump of the server config, for startup
// logs before the structured logger is wired up.
func (c *ServerConfig) Print() {
	fmt.Println("=== Server Configuration ===")
	fmt.Printf("Address:              %s\n", c.Addr)
	fmt.Printf("Max Sessions:         %d\n", c.MaxSessions)
	fmt.Printf("Max Subs/Session:     %d\n", c.MaxSubscriptionsPerSession)
	fmt.Printf("Session Timeout:      %s\n", c.SessionTimeout)
	fmt.Printf("CPU Reject Threshold: %.1f%%\n", c.CPURejectThreshold)
	fmt.Printf("Kafka Brokers:        %q\n", c.KafkaBrokers)
	fmt.Printf("NATS URL:             %q\n", c.NATSURL)
	fmt.Printf("Metrics Address:      %s\n", c.MetricsAddr)
	fmt.Printf("Log Level:            %s\n", c.LogLevel)
	fmt.Println("=============================")
}

// LogConfig emits the server config as one structured log line.
func (c *ServerConfig) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("addr", c.Addr).
		Int("max_sessions", c.MaxSessions).
		Int("max_subscriptions_per_session", c.MaxSubscriptionsPerSession).
		Dur("session_timeout", c.SessionTimeout).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Bool("kafka_enabled", c.KafkaBrokers != "").
		Bool("nats_enabled", c.NATSURL != "").
		Str("metrics_addr", c.MetricsAddr).
		Msg("server configuration loaded")
}
