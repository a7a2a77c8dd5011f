package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
)

// Status reports a Channel's connection lifecycle, delivered on the
// stream returned by Channel.Status.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnected
	StatusRenewed
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusRenewed:
		return "renewed"
	default:
		return "disconnected"
	}
}

var ErrChannelClosed = errors.New("opcua: channel closed")

type pendingRequest struct {
	resultCh chan Envelope
}

// Channel is a single WebSocket connection multiplexing concurrent
// request/response pairs by RequestID, mirroring the read/write loop
// split the teacher's server transport uses, run in the client
// direction.
type Channel struct {
	logger zerolog.Logger

	mu       sync.Mutex
	conn     net.Conn
	pending  map[uint32]*pendingRequest
	closed   bool
	attempts int

	nextRequestID uint32
	writeMu       sync.Mutex

	statusCh chan Status
}

// New constructs an unconnected Channel.
func New(logger zerolog.Logger) *Channel {
	return &Channel{
		logger:   logger,
		pending:  make(map[uint32]*pendingRequest),
		statusCh: make(chan Status, 8),
	}
}

// Status returns the channel's connection status stream. Renewed is
// sent after a reconnect following a prior Disconnected, so a
// subscriber can tell a fresh connection apart from the first one.
func (c *Channel) Status() <-chan Status { return c.statusCh }

// Connect dials url and starts the read loop. It blocks until the
// WebSocket handshake completes or ctx is done.
func (c *Channel) Connect(ctx context.Context, url string) error {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return err
	}

	c.mu.Lock()
	renewed := c.attempts > 0
	c.attempts++
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	var src io.Reader = conn
	if br != nil && br.Buffered() > 0 {
		src = io.MultiReader(br, conn)
	}
	go c.readLoop(conn, src)

	if renewed {
		c.emitStatus(StatusRenewed)
	} else {
		c.emitStatus(StatusConnected)
	}
	return nil
}

func (c *Channel) emitStatus(s Status) {
	select {
	case c.statusCh <- s:
	default:
		c.logger.Warn().Str("status", s.String()).Msg("status stream full, dropping event")
	}
}

// Close tears down the connection and fails every outstanding request.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	pending := c.pending
	c.pending = make(map[uint32]*pendingRequest)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for _, p := range pending {
		close(p.resultCh)
	}
}

// BeginRequest sends a request tagged with authToken (empty for
// CreateSession, which has none yet) and blocks until its matching
// response arrives, ctx is cancelled, or the channel closes.
func (c *Channel) BeginRequest(ctx context.Context, authToken string, svc ServiceID, body []byte) (Envelope, error) {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return Envelope{}, ErrChannelClosed
	}
	id := atomic.AddUint32(&c.nextRequestID, 1)
	req := &pendingRequest{resultCh: make(chan Envelope, 1)}
	c.pending[id] = req
	conn := c.conn
	c.mu.Unlock()

	frame := encodeEnvelope(Envelope{RequestID: id, AuthToken: authToken, Service: svc, Body: body})

	c.writeMu.Lock()
	err := wsutil.WriteClientMessage(conn, ws.OpBinary, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return Envelope{}, err
	}

	select {
	case resp, ok := <-req.resultCh:
		if !ok {
			return Envelope{}, ErrChannelClosed
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return Envelope{}, ctx.Err()
	}
}

func (c *Channel) readLoop(conn net.Conn, src io.Reader) {
	reader := wsutil.NewReader(src, ws.StateClientSide)
	for {
		head, err := reader.NextFrame()
		if err != nil {
			c.handleDisconnect(conn)
			return
		}

		switch head.OpCode {
		case ws.OpClose:
			c.handleDisconnect(conn)
			return
		case ws.OpPing:
			_ = wsutil.WriteClientMessage(conn, ws.OpPong, nil)
		case ws.OpBinary:
			payload := make([]byte, head.Length)
			if _, err := io.ReadFull(reader, payload); err != nil {
				c.handleDisconnect(conn)
				return
			}
			env, err := decodeEnvelope(payload)
			if err != nil {
				c.logger.Warn().Err(err).Msg("dropping malformed envelope")
				continue
			}
			c.deliver(env)
		default:
			if _, err := io.CopyN(io.Discard, reader, int64(head.Length)); err != nil {
				c.handleDisconnect(conn)
				return
			}
		}
	}
}

func (c *Channel) deliver(env Envelope) {
	c.mu.Lock()
	req, ok := c.pending[env.RequestID]
	if ok {
		delete(c.pending, env.RequestID)
	}
	c.mu.Unlock()
	if ok {
		req.resultCh <- env
	}
}

func (c *Channel) handleDisconnect(conn net.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		// Superseded by a later Connect; this loop's exit is stale.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.pending
	c.pending = make(map[uint32]*pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		close(p.resultCh)
	}
	_ = conn.Close()
	c.emitStatus(StatusDisconnected)
}

// DialWithRetry calls Connect in a loop, waiting the same fixed backoff
// between attempts, until it succeeds or ctx is done, mirroring the reconnect behaviour the
// channel's status stream exists to report.
func DialWithRetry(ctx context.Context, c *Channel, url string, backoff time.Duration) error {
	for {
		err := c.Connect(ctx, url)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
