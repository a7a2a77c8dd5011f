package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// StatusEvent is one channel-status transition, published to external
// observers (e.g. an ops dashboard) as JSON.
type StatusEvent struct {
	ChannelID string    `json:"channel_id"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// StatusBus fans channel status events out to subscribers. With no
// NATS URL configured it degrades to a local-only bus (Publish is then
// a no-op besides the in-process handlers already on the Channel's own
// Status() stream) rather than failing startup over an optional
// dependency.
type StatusBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
	subject string
}

// NewStatusBus dials url if non-empty; an empty url yields a
// local-only bus.
func NewStatusBus(url, subject string, logger zerolog.Logger) (*StatusBus, error) {
	bus := &StatusBus{logger: logger, subject: subject}
	if url == "" {
		return bus, nil
	}

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("status bus disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("status bus reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect status bus: %w", err)
	}
	bus.conn = conn
	return bus, nil
}

// Publish emits one status event. A publish error is logged, not
// returned: the status bus is an observability side channel and must
// never affect the channel whose status it reports.
func (b *StatusBus) Publish(channelID string, status Status) {
	if b.conn == nil {
		return
	}
	data, err := json.Marshal(StatusEvent{ChannelID: channelID, Status: status.String(), At: time.Now()})
	if err != nil {
		b.logger.Warn().Err(err).Msg("marshal status event")
		return
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		b.logger.Warn().Err(err).Msg("publish status event")
	}
}

// Close releases the underlying NATS connection, if any.
func (b *StatusBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}
