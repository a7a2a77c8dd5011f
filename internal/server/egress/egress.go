// Package egress mirrors every published NotificationMessage to an
// optional Kafka/Redpanda topic for audit and replay, adapted from the
// teacher's franz-go consumer in ws/internal/shared/kafka — here run in
// the producer direction, off the publish hot path.
package egress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// Record is the audit payload written to Kafka for one published
// NotificationMessage.
type Record struct {
	SessionAuthToken string    `json:"sessionAuthToken"`
	SubscriptionID   uint32    `json:"subscriptionId"`
	SequenceNumber   uint32    `json:"sequenceNumber"`
	PublishedAt      time.Time `json:"publishedAt"`
	NotificationType string    `json:"notificationType"`
}

// Sink asynchronously produces audit records to a Kafka topic. A nil
// Sink (as returned when no brokers are configured) is safe to call
// Publish on — it is simply a no-op, matching the optional-by-default
// posture the teacher's NATS/Kafka wiring uses elsewhere in this module.
type Sink struct {
	client *kgo.Client
	topic  string
	logger zerolog.Logger
}

// New dials brokers and returns a Sink producing to topic. An empty
// brokers list disables egress entirely (New returns nil, nil).
func New(brokers []string, topic string, logger zerolog.Logger) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &Sink{client: client, topic: topic, logger: logger.With().Str("component", "egress").Logger()}, nil
}

// Publish records a notification message asynchronously; a production
// failure is logged, never surfaced to the publish path that called it.
func (s *Sink) Publish(sessionAuthToken string, subscriptionID uint32, msg ua.NotificationMessage) {
	if s == nil {
		return
	}
	notifType := "Empty"
	if len(msg.NotificationData) > 0 {
		notifType = msg.NotificationData[0].TypeID.NodeID.String()
	}
	rec := Record{
		SessionAuthToken: sessionAuthToken,
		SubscriptionID:   subscriptionID,
		SequenceNumber:   msg.SequenceNumber,
		PublishedAt:      time.Now(),
		NotificationType: notifType,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn().Err(err).Msg("marshal audit record")
		return
	}
	s.client.Produce(context.Background(), &kgo.Record{Topic: s.topic, Value: payload}, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn().Err(err).Msg("produce audit record")
		}
	})
}

// Close flushes outstanding records and closes the underlying client.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	_ = s.client.Flush(context.Background())
	s.client.Close()
}
