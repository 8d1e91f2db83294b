package chat

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clinwire/clinic-console/internal/observability/metrics"
	"github.com/clinwire/clinic-console/pkg/logging"
)

// ConnState is the lifecycle state of the managed websocket connection.
type ConnState int

const (
	StateClosed ConnState = iota
	StateConnecting
	StateOpen
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// manualCloseCode marks an intentional disconnect. A close carrying any
// other code re-arms the reconnect timer.
const manualCloseCode = websocket.CloseNormalClosure

// ErrNotConnected is returned by send when the connection is not open.
// Frames are never buffered for later delivery.
var ErrNotConnected = errors.New("chat: connection not open")

// connManager owns the single websocket connection and its reconnect timer.
// Its methods run only on the client actor goroutine; dial results, inbound
// frames and close events come back through post. The generation counter
// orphans events from sockets that have since been replaced or torn down.
type connManager struct {
	wsURL   string
	delay   time.Duration
	dialer  *websocket.Dialer
	post    func(event) bool
	logger  *logging.Logger
	metrics *metrics.ChatMetrics

	state ConnState
	gen   int
	conn  *websocket.Conn
	token string
	retry *time.Timer
}

// connect dials the message endpoint with the token as the establishment
// credential. A pending reconnect timer is always cancelled first so an
// explicit connect can never race the timer into a duplicate socket. The
// call is a no-op while a connection is open or being established.
func (m *connManager) connect(token string) {
	m.stopRetry()
	if m.state == StateOpen || m.state == StateConnecting {
		m.logger.Warn("chat: connection already established", "state", m.state.String())
		return
	}

	m.state = StateConnecting
	m.token = token
	m.gen++
	gen := m.gen

	target := m.wsURL + "?token=" + url.QueryEscape(token)
	dialer := m.dialer
	m.logger.Info("chat: connecting", "url", m.wsURL)
	go func() {
		conn, resp, err := dialer.Dial(target, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		m.post(dialDone{gen: gen, conn: conn, err: err})
	}()
}

func (m *connManager) handleDialDone(ev dialDone) {
	if ev.gen != m.gen {
		// A disconnect or newer connect superseded this dial.
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}
	if ev.err != nil {
		m.logger.Error("chat: websocket dial failed", "error", ev.err)
		m.state = StateDisconnected
		m.scheduleRetry()
		return
	}
	m.stopRetry()
	m.state = StateOpen
	m.conn = ev.conn
	m.logger.Info("chat: websocket connection established")
	go m.readPump(ev.conn, ev.gen)
}

// readPump runs off the actor goroutine; it only posts events and never
// touches manager state directly.
func (m *connManager) readPump(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := websocket.CloseAbnormalClosure
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				code = closeErr.Code
			}
			m.post(connClosed{gen: gen, code: code})
			return
		}
		m.post(inboundFrame{gen: gen, data: data})
	}
}

func (m *connManager) handleClosed(ev connClosed) {
	if ev.gen != m.gen {
		return
	}
	m.logger.Warn("chat: websocket connection closed", "code", ev.code)
	m.state = StateDisconnected
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if ev.code == manualCloseCode {
		return
	}
	m.scheduleRetry()
}

// scheduleRetry arms the reconnect timer unless one is already pending.
func (m *connManager) scheduleRetry() {
	if m.retry != nil {
		return
	}
	token := m.token
	gen := m.gen
	m.logger.Info("chat: scheduling reconnect", "delay", m.delay.String())
	m.metrics.ObserveReconnect()
	m.retry = time.AfterFunc(m.delay, func() {
		m.post(retryFired{gen: gen, token: token})
	})
}

func (m *connManager) handleRetryFired(ev retryFired) {
	if ev.gen != m.gen {
		// The timer fired in the window between Stop and a disconnect or
		// newer connect bumping the generation. Its token is stale too.
		return
	}
	m.retry = nil
	m.connect(ev.token)
}

func (m *connManager) stopRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

// send writes one frame if the connection is open. It never queues.
func (m *connManager) send(frame OutboundFrame) error {
	if m.state != StateOpen || m.conn == nil {
		m.logger.Error("chat: cannot send, connection not open", "state", m.state.String())
		return ErrNotConnected
	}
	if err := m.conn.WriteJSON(frame); err != nil {
		m.logger.Error("chat: websocket write failed", "error", err)
		return fmt.Errorf("chat: write frame: %w", err)
	}
	return nil
}

// disconnect cancels any pending reconnect, closes the transport with the
// manual close code and resets to Closed. Safe to call when already closed.
func (m *connManager) disconnect() {
	m.stopRetry()
	if m.conn != nil {
		msg := websocket.FormatCloseMessage(manualCloseCode, "session closed")
		deadline := time.Now().Add(time.Second)
		if err := m.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			m.logger.Debug("chat: close handshake failed", "error", err)
		}
		_ = m.conn.Close()
		m.conn = nil
	}
	// Orphan any in-flight dial or read pump belonging to this connection.
	m.gen++
	m.state = StateClosed
	m.token = ""
}
