// Package conn owns the interview stream: a full-duplex websocket carrying
// JSON control frames outbound and JSON text plus binary audio inbound. The
// manager handles keepalive, dispatch, and reconnection; nothing outside
// this package touches the socket.
package conn

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/talentscout/sessiond/pkg/models"
)

const (
	// DefaultPingInterval is the keepalive cadence. The ping is a liveness
	// nudge for idle-connection middleboxes, not a heartbeat protocol:
	// no pong is tracked and no timeout is derived from it.
	DefaultPingInterval = 25 * time.Second
	// DefaultReconnectDelay is the wait before the first reattempt after an
	// unexpected close.
	DefaultReconnectDelay = 2 * time.Second
	// DefaultMaxReconnectDelay caps the exponential backoff growth.
	DefaultMaxReconnectDelay = 30 * time.Second
)

// Callbacks are the inbound event hooks. All may be nil.
type Callbacks struct {
	// OnAIMessage receives the interviewer's current line from a "text"
	// frame.
	OnAIMessage func(text string)
	// OnAudio receives one binary audio segment.
	OnAudio func(segment []byte)
	// OnStatus observes connection-state transitions.
	OnStatus func(status models.ConnectionStatus)
	// OnError receives user-surfaceable connection errors. Never called
	// for conditions the reconnect loop recovers on its own.
	OnError func(msg string)
}

// Manager maintains the websocket to <backend>/ws/interview/{token}.
type Manager struct {
	backendURL string
	token      string
	config     models.SessionConfig
	cb         Callbacks
	dialer     *websocket.Dialer

	PingInterval      time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	mu              sync.Mutex
	conn            *websocket.Conn
	status          models.ConnectionStatus
	shouldReconnect bool
	reconnectTmr    *time.Timer
	nextDelay       time.Duration
	pingStop        chan struct{}

	writeMu sync.Mutex
}

// NewManager creates a manager for one session. backendURL is the http(s)
// base of the interview service; the scheme is rewritten for websockets.
func NewManager(backendURL, token string, config models.SessionConfig, cb Callbacks) *Manager {
	return &Manager{
		backendURL:        backendURL,
		token:             token,
		config:            config,
		cb:                cb,
		dialer:            websocket.DefaultDialer,
		PingInterval:      DefaultPingInterval,
		ReconnectDelay:    DefaultReconnectDelay,
		MaxReconnectDelay: DefaultMaxReconnectDelay,
		status:            models.ConnDisconnected,
	}
}

// streamURL builds the ws(s) endpoint with the session parameters the
// backend reads at accept time.
func (m *Manager) streamURL() string {
	base := strings.Replace(m.backendURL, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)

	q := url.Values{}
	q.Set("persona", string(m.config.Persona))
	q.Set("type", string(m.config.Type))
	q.Set("difficulty", string(m.config.Difficulty))
	q.Set("duration", fmt.Sprintf("%d", m.config.DurationMinutes))
	return fmt.Sprintf("%s/ws/interview/%s?%s", base, m.token, q.Encode())
}

// Connect opens the stream. No-op when already open; surfaces an error when
// no session token is set.
func (m *Manager) Connect() {
	if m.token == "" {
		log.Error().Msg("No session token provided")
		if m.cb.OnError != nil {
			m.cb.OnError("no session token provided")
		}
		return
	}

	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		log.Debug().Msg("Already connected")
		return
	}
	changed := m.setStatusLocked(models.ConnConnecting)
	wasReconnecting := m.shouldReconnect
	m.mu.Unlock()
	m.notifyStatus(models.ConnConnecting, changed)

	wsURL := m.streamURL()
	log.Info().Str("url", wsURL).Msg("Connecting to interview stream")

	c, resp, err := m.dialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to interview stream")
		m.mu.Lock()
		changed = m.setStatusLocked(models.ConnDisconnected)
		// Retry only applies once a session has been connected; a failed
		// first dial is surfaced, not retried.
		if wasReconnecting && m.shouldReconnect {
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		m.notifyStatus(models.ConnDisconnected, changed)
		if m.cb.OnError != nil {
			m.cb.OnError("failed to connect to interview server")
		}
		return
	}

	m.mu.Lock()
	m.conn = c
	m.shouldReconnect = true
	m.nextDelay = m.ReconnectDelay
	changed = m.setStatusLocked(models.ConnConnected)
	m.pingStop = make(chan struct{})
	pingStop := m.pingStop
	m.mu.Unlock()
	m.notifyStatus(models.ConnConnected, changed)

	log.Info().Msg("Interview stream connected")

	go m.pingLoop(c, pingStop)
	go m.readLoop(c)
}

// Disconnect marks the session intentionally closed, suppresses reconnect,
// clears timers, and closes the channel with a normal-closure code.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.shouldReconnect = false
	if m.reconnectTmr != nil {
		m.reconnectTmr.Stop()
		m.reconnectTmr = nil
	}
	c := m.conn
	m.conn = nil
	m.stopPingLocked()
	changed := m.setStatusLocked(models.ConnDisconnected)
	m.mu.Unlock()
	m.notifyStatus(models.ConnDisconnected, changed)

	if c != nil {
		m.writeMu.Lock()
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session disconnected"),
			time.Now().Add(time.Second))
		m.writeMu.Unlock()
		_ = c.Close()
	}
	log.Info().Msg("Interview stream disconnected")
}

// IsConnected reports whether the channel is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == models.ConnConnected
}

// Status returns the current connection status.
func (m *Manager) Status() models.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SendTranscript transmits a finalized candidate utterance. No-op with a
// warning when the channel is closed - never an error, never a queue.
func (m *Manager) SendTranscript(text string) {
	m.send(models.OutboundMessage{Type: models.MsgTranscript, Content: text})
}

// SendCode transmits a code submission.
func (m *Manager) SendCode(code, language string) {
	m.send(models.OutboundMessage{Type: models.MsgCodeSubmission, Code: code, Language: language})
	log.Info().Str("language", language).Msg("Code submitted")
}

// SendTimeUp transmits the end-of-interview control signal.
func (m *Manager) SendTimeUp() {
	m.send(models.OutboundMessage{
		Type:    models.MsgTimeUp,
		Content: "Please conclude the interview now with a brief summary.",
	})
}

func (m *Manager) send(msg models.OutboundMessage) {
	m.mu.Lock()
	c := m.conn
	m.mu.Unlock()
	if c == nil {
		log.Warn().Str("type", msg.Type).Msg("Stream not connected, dropping outbound message")
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal outbound message")
		return
	}

	m.writeMu.Lock()
	err = c.WriteMessage(websocket.TextMessage, data)
	m.writeMu.Unlock()
	if err != nil {
		log.Warn().Err(err).Str("type", msg.Type).Msg("Failed to write outbound message")
	}
}

func (m *Manager) pingLoop(c *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(m.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.send(models.OutboundMessage{Type: models.MsgPing})
		}
	}
}

func (m *Manager) readLoop(c *websocket.Conn) {
	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			m.handleClose(c, err)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if m.cb.OnAudio != nil {
				m.cb.OnAudio(data)
			}
		case websocket.TextMessage:
			var msg models.InboundMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Error().Err(err).Msg("Failed to parse inbound message")
				continue
			}
			if msg.Type == models.MsgText && m.cb.OnAIMessage != nil {
				m.cb.OnAIMessage(msg.Content)
			}
		}
	}
}

// handleClose runs once per connection when the read loop exits.
func (m *Manager) handleClose(c *websocket.Conn, err error) {
	_ = c.Close()

	normal := websocket.IsCloseError(err, websocket.CloseNormalClosure)
	code := websocket.CloseAbnormalClosure
	if ce, ok := err.(*websocket.CloseError); ok {
		code = ce.Code
	}

	m.mu.Lock()
	if m.conn != c {
		// Already torn down by Disconnect.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.stopPingLocked()
	changed := m.setStatusLocked(models.ConnDisconnected)

	retry := m.shouldReconnect && !normal
	if retry {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()
	m.notifyStatus(models.ConnDisconnected, changed)

	log.Info().Int("code", code).Bool("reconnecting", retry).Msg("Interview stream closed")
}

// scheduleReconnectLocked arms a single reconnect attempt. The first wait is
// ReconnectDelay; each subsequent failure doubles it up to
// MaxReconnectDelay, and a successful connect resets the ladder.
func (m *Manager) scheduleReconnectLocked() {
	delay := m.nextDelay
	if delay <= 0 {
		delay = m.ReconnectDelay
	}
	next := delay * 2
	if next > m.MaxReconnectDelay {
		next = m.MaxReconnectDelay
	}
	m.nextDelay = next

	if m.reconnectTmr != nil {
		m.reconnectTmr.Stop()
	}
	m.reconnectTmr = time.AfterFunc(delay, func() {
		m.mu.Lock()
		ok := m.shouldReconnect
		m.mu.Unlock()
		if ok {
			m.Connect()
		}
	})
	log.Info().Dur("delay", delay).Msg("Scheduling reconnect")
}

func (m *Manager) stopPingLocked() {
	if m.pingStop != nil {
		close(m.pingStop)
		m.pingStop = nil
	}
}

// setStatusLocked records a transition and reports whether it changed; the
// caller notifies after releasing the lock so callbacks observe transitions
// in order without holding it.
func (m *Manager) setStatusLocked(s models.ConnectionStatus) bool {
	if m.status == s {
		return false
	}
	m.status = s
	return true
}

func (m *Manager) notifyStatus(s models.ConnectionStatus, changed bool) {
	if changed && m.cb.OnStatus != nil {
		m.cb.OnStatus(s)
	}
}

// SetDialer overrides the websocket dialer (tests point it at a local server).
func (m *Manager) SetDialer(d *websocket.Dialer) {
	m.dialer = d
}
