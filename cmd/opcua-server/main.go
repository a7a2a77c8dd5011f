package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-runtime/internal/config"
	"github.com/nexus-edge/opcua-runtime/internal/logging"
	"github.com/nexus-edge/opcua-runtime/internal/metrics"
	"github.com/nexus-edge/opcua-runtime/internal/server/egress"
	"github.com/nexus-edge/opcua-runtime/internal/server/endpoint"
	"github.com/nexus-edge/opcua-runtime/internal/transport"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

func splitBrokers(brokers string) []string {
	var result []string
	for _, b := range strings.Split(brokers, ",") {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	bootLogger := log.New(os.Stdout, "[opcua-server] ", log.LstdFlags)

	maxProcs := runtime.GOMAXPROCS(0)
	bootLogger.Printf("GOMAXPROCS: %d (via automaxprocs)", maxProcs)

	cfg, err := config.LoadServerConfig(nil)
	if err != nil {
		bootLogger.Fatalf("failed to load configuration: %v", err)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	cfg.Print()

	logger := logging.New(cfg.LogLevel, cfg.Pretty)
	cfg.LogConfig(logger)

	egressSink, err := egress.New(splitBrokers(cfg.KafkaBrokers), cfg.KafkaTopic, logger)
	if err != nil {
		bootLogger.Fatalf("failed to create egress sink: %v", err)
	}

	statusBus, err := transport.NewStatusBus(cfg.NATSURL, "opcua.channel.status", logger)
	if err != nil {
		bootLogger.Fatalf("failed to create status bus: %v", err)
	}
	defer statusBus.Close()

	ep := endpoint.New(endpoint.Config{
		URL:                cfg.Addr,
		SecurityPolicy:     "None",
		MaxSessions:        cfg.MaxSessions,
		SessionTimeout:     cfg.SessionTimeout,
		CPURejectThreshold: cfg.CPURejectThreshold,
		AuthSigningKey:     cfg.AuthSigningKey,
		CreateItem:         newDemoSource().CreateItem,
		Audit: func(authToken string, subscriptionID uint32, msg ua.NotificationMessage) {
			egressSink.Publish(authToken, subscriptionID, msg)
		},
		Logger: logger,
	})
	defer ep.Close()

	handler := transport.NewEndpointHandler(ep, ua.DefaultTypeRegistry())
	listener := transport.NewListener(cfg.Addr, handler, logger, statusBus)
	if err := listener.Start(); err != nil {
		bootLogger.Fatalf("failed to start transport listener: %v", err)
	}

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	statsStop := make(chan struct{})
	go logSubscriptionStats(ep, logger, statsStop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	close(statsStop)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	listener.Stop(ctx)
	_ = metricsServer.Shutdown(ctx)
	egressSink.Close()
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// logSubscriptionStats periodically logs each session's per-subscription
// counters, exercising Endpoint.Stats (and, transitively,
// Subscription.Stats) until stop closes.
func logSubscriptionStats(ep *endpoint.Endpoint, logger zerolog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for authToken, subs := range ep.Stats() {
				for subID, stats := range subs {
					logger.Debug().
						Str("session", authToken).
						Uint32("subscription_id", subID).
						Int("queue_length", stats.QueueLength).
						Int("monitored_items", stats.MonitoredItems).
						Msg("subscription stats")
				}
			}
		}
	}
}
