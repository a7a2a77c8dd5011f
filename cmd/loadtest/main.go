// cmd/loadtest drives many concurrent sessions against an opcua-server
// endpoint, ramping up connections at a fixed rate and reporting
// aggregate metrics, in the same ramp/sustain/report shape as the
// teacher's load generator — using gorilla/websocket directly, rather
// than transport.Channel's gobwas/ws connection, so the test traffic
// is generated independently of the client library under test.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexus-edge/opcua-runtime/internal/transport"
	"github.com/nexus-edge/opcua-runtime/internal/ua"
)

type config struct {
	serverURL         string
	targetConnections int
	rampPerSecond     int
	sustainFor        time.Duration
	reportEvery       time.Duration
}

type stats struct {
	activeConnections int64
	totalCreated      int64
	failedConnections int64
	notificationsRecv int64
	publishErrors     int64
}

func main() {
	cfg := config{}
	flag.StringVar(&cfg.serverURL, "url", "ws://localhost:4840", "opcua-server transport URL")
	flag.IntVar(&cfg.targetConnections, "connections", 100, "target concurrent sessions")
	flag.IntVar(&cfg.rampPerSecond, "ramp", 10, "sessions to start per second")
	flag.DurationVar(&cfg.sustainFor, "sustain", time.Minute, "how long to hold the target connection count")
	flag.DurationVar(&cfg.reportEvery, "report-interval", 5*time.Second, "metrics report interval")
	flag.Parse()

	logger := log.New(os.Stdout, "[loadtest] ", log.LstdFlags)

	st := &stats{}
	types := ua.DefaultTypeRegistry()

	stop := make(chan struct{})
	var wg sync.WaitGroup

	rampTicker := time.NewTicker(time.Second / time.Duration(max1(cfg.rampPerSecond)))
	defer rampTicker.Stop()

	started := 0
	go func() {
		for started < cfg.targetConnections {
			select {
			case <-stop:
				return
			case <-rampTicker.C:
				wg.Add(1)
				go runSession(cfg, st, types, stop, &wg)
				started++
			}
		}
	}()

	reportTicker := time.NewTicker(cfg.reportEvery)
	defer reportTicker.Stop()
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-reportTicker.C:
				logger.Printf("active=%d created=%d failed=%d notifications=%d publish_errors=%d",
					atomic.LoadInt64(&st.activeConnections),
					atomic.LoadInt64(&st.totalCreated),
					atomic.LoadInt64(&st.failedConnections),
					atomic.LoadInt64(&st.notificationsRecv),
					atomic.LoadInt64(&st.publishErrors),
				)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-time.After(cfg.sustainFor):
	case <-sigCh:
	}
	close(stop)
	wg.Wait()
	logger.Printf("final: created=%d failed=%d notifications=%d publish_errors=%d",
		atomic.LoadInt64(&st.totalCreated), atomic.LoadInt64(&st.failedConnections),
		atomic.LoadInt64(&st.notificationsRecv), atomic.LoadInt64(&st.publishErrors))
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// runSession opens one raw gorilla/websocket connection, runs a
// minimal CreateSession/CreateSubscription/CreateMonitoredItems/Publish
// handshake against cmd/opcua-server, and loops Publish until stop
// fires, mirroring one real client's traffic shape without pulling in
// the client session/subscription reconcilers.
func runSession(cfg config, st *stats, types *ua.TypeRegistry, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	u, err := url.Parse(cfg.serverURL)
	if err != nil {
		atomic.AddInt64(&st.failedConnections, 1)
		return
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&st.failedConnections, 1)
		return
	}
	defer conn.Close()

	atomic.AddInt64(&st.activeConnections, 1)
	defer atomic.AddInt64(&st.activeConnections, -1)
	atomic.AddInt64(&st.totalCreated, 1)

	var reqID uint32
	call := func(authToken string, svc transport.ServiceID, body []byte) (transport.Envelope, error) {
		reqID++
		frame := transport.EncodeEnvelope(transport.Envelope{RequestID: reqID, AuthToken: authToken, Service: svc, Body: body})
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return transport.Envelope{}, err
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return transport.Envelope{}, err
		}
		return transport.DecodeEnvelope(payload)
	}

	resp, err := call("", transport.ServiceCreateSession, transport.EncodeCreateSessionRequest(ua.CreateSessionRequest{
		ClientDescription:      "opcua-runtime loadtest",
		SessionName:            fmt.Sprintf("loadtest-%d", rand.Int63()),
		RequestedSessionTimeout: 60000,
	}))
	if err != nil {
		atomic.AddInt64(&st.failedConnections, 1)
		return
	}
	sessionResp, err := transport.DecodeCreateSessionResponse(resp.Body, types)
	if err != nil {
		atomic.AddInt64(&st.failedConnections, 1)
		return
	}
	authToken := sessionResp.AuthToken

	resp, err = call(authToken, transport.ServiceCreateSubscription, transport.EncodeCreateSubscriptionRequest(ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 500,
		RequestedLifetimeCount:      60,
		RequestedMaxKeepAliveCount:  10,
		MaxNotificationsPerPublish:  100,
		PublishingEnabled:           true,
	}))
	if err != nil {
		atomic.AddInt64(&st.failedConnections, 1)
		return
	}
	subResp, err := transport.DecodeCreateSubscriptionResponse(resp.Body, types)
	if err != nil {
		atomic.AddInt64(&st.failedConnections, 1)
		return
	}

	resp, err = call(authToken, transport.ServiceCreateMonitoredItems, transport.EncodeCreateMonitoredItemsRequest(ua.CreateMonitoredItemsRequest{
		SubscriptionID: subResp.SubscriptionID,
		ItemsToCreate: []ua.MonitoredItemCreateRequest{{
			ItemToMonitor:   ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, 1), AttributeID: 13},
			MonitoringMode:  ua.MonitoringModeReporting,
			RequestedParams: ua.MonitoringParameters{ClientHandle: 1, SamplingInterval: 500, QueueSize: 10},
		}},
	}))
	if err != nil {
		atomic.AddInt64(&st.publishErrors, 1)
	}

	for {
		select {
		case <-stop:
			return
		default:
		}
		body, err := transport.EncodePublishRequest(ua.PublishRequest{})
		if err != nil {
			atomic.AddInt64(&st.publishErrors, 1)
			return
		}
		resp, err := call(authToken, transport.ServicePublish, body)
		if err != nil {
			atomic.AddInt64(&st.publishErrors, 1)
			return
		}
		if resp.Service == transport.ServiceFault {
			atomic.AddInt64(&st.publishErrors, 1)
			continue
		}
		pubResp, err := transport.DecodePublishResponse(resp.Body, types)
		if err != nil {
			atomic.AddInt64(&st.publishErrors, 1)
			continue
		}
		if len(pubResp.NotificationMessage.NotificationData) > 0 {
			atomic.AddInt64(&st.notificationsRecv, 1)
		}
	}
}
