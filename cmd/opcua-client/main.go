package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/nexus-edge/opcua-runtime/internal/config"
	clientsession "github.com/nexus-edge/opcua-runtime/internal/client/session"
	clientsubscription "github.com/nexus-edge/opcua-runtime/internal/client/subscription"
	"github.com/nexus-edge/opcua-runtime/internal/logging"
	"github.com/nexus-edge/opcua-runtime/internal/transport"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	nodeID := flag.Uint("node", 1, "numeric identifier (namespace 1) of the node to monitor")
	flag.Parse()

	bootLogger := log.New(os.Stdout, "[opcua-client] ", log.LstdFlags)
	runtime.GOMAXPROCS(0)

	cfg, err := config.LoadClientConfig(nil)
	if err != nil {
		bootLogger.Fatalf("failed to load configuration: %v", err)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	logger := logging.New(cfg.LogLevel, cfg.Pretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := transport.New(logger)
	if err := transport.DialWithRetry(ctx, channel, cfg.ServerURL, time.Second); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	defer channel.Close()

	statusBus, err := transport.NewStatusBus(cfg.NATSURL, "opcua.channel.status", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create status bus")
	}
	defer statusBus.Close()

	types := ua.DefaultTypeRegistry()
	client := transport.NewClient(channel, types)

	if _, err := client.CreateSession(ctx, ua.CreateSessionRequest{
		ClientDescription:      "opcua-runtime demo client",
		SessionName:            "opcua-client",
		EndpointURL:            cfg.ServerURL,
		RequestedSessionTimeout: 60000,
	}); err != nil {
		logger.Fatal().Err(err).Msg("CreateSession failed")
	}

	sess := clientsession.New(client, types)
	defer sess.Close()

	sub := clientsubscription.New(client, ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: float64(cfg.PublishingInterval / time.Millisecond),
		RequestedLifetimeCount:      cfg.LifetimeCount,
		RequestedMaxKeepAliveCount:  cfg.MaxKeepAliveCount,
		MaxNotificationsPerPublish:  100,
		PublishingEnabled:           true,
	})
	sub.OnStatusChange(func(status ua.StatusCode) {
		logger.Warn().Str("status", status.String()).Msg("subscription status changed")
	})

	sub.OnSessionStatusChanged(ua.StatusGood)

	var subscriptionID uint32
	for i := 0; i < 50; i++ {
		if id, ok := sub.SubscriptionID(); ok {
			subscriptionID = id
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if subscriptionID == 0 {
		logger.Fatal().Msg("timed out waiting for CreateSubscription")
	}
	sess.RegisterHandler(subscriptionID, sub.HandleNotification)

	id := ua.NewNumericNodeID(1, uint32(*nodeID))
	sub.Subscribe(
		ua.ReadValueID{NodeID: id, AttributeID: 13},
		func(v ua.DataValue) {
			logger.Info().Interface("value", v.Value).Str("status", v.Status.String()).Msg("data change")
		},
	)

	go func() {
		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("publish loop stopped")
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := sub.Stats()
				logger.Debug().
					Uint32("subscription_id", stats.SubscriptionID).
					Int("item_count", stats.ItemCount).
					Int("pending_subscribe", stats.PendingSubscribe).
					Int("pending_unsubscribe", stats.PendingUnsubscribe).
					Msg("subscription stats")
			}
		}
	}()

	statusCh := channel.Status()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case status, ok := <-statusCh:
				if !ok {
					return
				}
				if status == transport.StatusRenewed {
					sub.OnSessionStatusChanged(ua.StatusGood)
				}
				statusBus.Publish(cfg.ServerURL, status)
				logger.Info().Str("status", status.String()).Msg("channel status")
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")
}
