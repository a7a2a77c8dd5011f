package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

// RequestHandler answers one decoded service request and returns the
// encoded response body plus the ServiceID to tag it with. Returning a
// non-nil fault causes the listener to send a ServiceFault envelope
// instead, per §4.2's substitution rule.
type RequestHandler func(ctx context.Context, authToken string, svc ServiceID, body []byte) (respSvc ServiceID, respBody []byte, fault *ua.StatusCode)

// Listener accepts WebSocket connections and dispatches each decoded
// envelope to a RequestHandler, writing its response back on the same
// connection. One goroutine per connection reads frames serially and
// dispatches each request handler call in its own goroutine so a slow
// Publish long-poll never blocks other requests on the same
// connection, mirroring the teacher's per-connection read/write split.
type Listener struct {
	addr    string
	logger  zerolog.Logger
	handler RequestHandler
	bus     *StatusBus

	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewListener constructs a Listener that upgrades every accepted
// connection to WebSocket and routes its envelopes to handler. bus may
// be nil, in which case connection lifecycle events simply aren't
// published anywhere.
func NewListener(addr string, handler RequestHandler, logger zerolog.Logger, bus *StatusBus) *Listener {
	return &Listener{addr: addr, handler: handler, logger: logger, bus: bus}
}

// Start begins accepting connections in the background.
func (l *Listener) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleUpgrade)
	l.httpServer = &http.Server{Addr: l.addr, Handler: mux}

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.logger.Info().Str("addr", l.addr).Msg("transport listening")

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error().Err(err).Msg("listener stopped")
		}
	}()
	return nil
}

// Stop gracefully shuts the listener down.
func (l *Listener) Stop(ctx context.Context) {
	if l.httpServer != nil {
		_ = l.httpServer.Shutdown(ctx)
	}
	l.wg.Wait()
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		l.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.serveConn(conn)
	}()
}

func (l *Listener) serveConn(conn net.Conn) {
	defer conn.Close()

	channelID := conn.RemoteAddr().String()
	if l.bus != nil {
		l.bus.Publish(channelID, StatusConnected)
		defer l.bus.Publish(channelID, StatusDisconnected)
	}

	var writeMu sync.Mutex
	var inflight sync.WaitGroup
	defer inflight.Wait()

	reader := wsutil.NewReader(conn, ws.StateServerSide)
	for {
		head, err := reader.NextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.logger.Debug().Err(err).Msg("read frame error")
			}
			return
		}

		switch head.OpCode {
		case ws.OpClose:
			return
		case ws.OpPing:
			if err := wsutil.WriteServerMessage(conn, ws.OpPong, nil); err != nil {
				return
			}
		case ws.OpBinary:
			payload := make([]byte, head.Length)
			if _, err := io.ReadFull(reader, payload); err != nil {
				return
			}
			env, err := decodeEnvelope(payload)
			if err != nil {
				l.logger.Warn().Err(err).Msg("dropping malformed envelope")
				continue
			}
			inflight.Add(1)
			go l.dispatch(conn, &writeMu, env, &inflight)
		default:
			if _, err := io.CopyN(io.Discard, reader, int64(head.Length)); err != nil {
				return
			}
		}
	}
}

func (l *Listener) dispatch(conn net.Conn, writeMu *sync.Mutex, env Envelope, inflight *sync.WaitGroup) {
	defer inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	respSvc, respBody, fault := l.handler(ctx, env.AuthToken, env.Service, env.Body)
	out := Envelope{RequestID: env.RequestID, Service: respSvc, Body: respBody}
	if fault != nil {
		out = Envelope{RequestID: env.RequestID, Service: ServiceFault, Body: encodeServiceFault(ua.ServiceFault{Header: ua.ResponseHeader{ServiceResult: *fault}})}
	}

	frame := encodeEnvelope(out)
	writeMu.Lock()
	err := wsutil.WriteServerMessage(conn, ws.OpBinary, frame)
	writeMu.Unlock()
	if err != nil {
		l.logger.Debug().Err(err).Msg("write response error")
	}
}
