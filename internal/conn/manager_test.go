// Package conn owns the interview stream.
package conn

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentscout/sessiond/pkg/models"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// streamServer is a scripted backend for one test.
type streamServer struct {
	*httptest.Server
	mu       sync.Mutex
	conns    []*websocket.Conn
	inbound  chan models.OutboundMessage
	accepted atomic.Int32
}

func newStreamServer(t *testing.T) *streamServer {
	t.Helper()
	s := &streamServer{inbound: make(chan models.OutboundMessage, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.accepted.Add(1)
		s.mu.Lock()
		s.conns = append(s.conns, c)
		s.mu.Unlock()

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			var msg models.OutboundMessage
			if err := json.Unmarshal(data, &msg); err == nil {
				s.inbound <- msg
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *streamServer) latestConn(t *testing.T) *websocket.Conn {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.conns) > 0
	}, 2*time.Second, 10*time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[len(s.conns)-1]
}

func newTestManager(srv *streamServer, cb Callbacks) *Manager {
	m := NewManager(srv.URL, "sess-123", models.DefaultConfig(), cb)
	m.ReconnectDelay = 50 * time.Millisecond
	m.MaxReconnectDelay = 200 * time.Millisecond
	m.PingInterval = 20 * time.Millisecond
	return m
}

func TestConnectNoTokenSurfacesError(t *testing.T) {
	var gotErr atomic.Value
	m := NewManager("http://localhost:0", "", models.DefaultConfig(), Callbacks{
		OnError: func(msg string) { gotErr.Store(msg) },
	})

	m.Connect()
	assert.Equal(t, "no session token provided", gotErr.Load())
	assert.False(t, m.IsConnected())
}

func TestConnectAndInboundDispatch(t *testing.T) {
	srv := newStreamServer(t)

	var mu sync.Mutex
	var aiMessages []string
	var audio [][]byte
	m := newTestManager(srv, Callbacks{
		OnAIMessage: func(text string) {
			mu.Lock()
			aiMessages = append(aiMessages, text)
			mu.Unlock()
		},
		OnAudio: func(seg []byte) {
			mu.Lock()
			audio = append(audio, seg)
			mu.Unlock()
		},
	})
	defer m.Disconnect()

	m.Connect()
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)

	c := srv.latestConn(t)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"text","content":"Tell me about yourself."}`)))
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte{0x52, 0x49, 0x46, 0x46}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(aiMessages) == 1 && len(audio) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Tell me about yourself.", aiMessages[0])
	assert.Equal(t, []byte{0x52, 0x49, 0x46, 0x46}, audio[0])
}

func TestConnectTwiceIsNoOp(t *testing.T) {
	srv := newStreamServer(t)
	m := newTestManager(srv, Callbacks{})
	defer m.Disconnect()

	m.Connect()
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)
	m.Connect()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), srv.accepted.Load())
}

func TestSendWhileDisconnectedIsNoOp(t *testing.T) {
	m := NewManager("http://localhost:0", "sess-123", models.DefaultConfig(), Callbacks{})

	assert.NotPanics(t, func() {
		m.SendTranscript("hello")
		m.SendCode("print(1)", "python")
		m.SendTimeUp()
	})
}

func TestOutboundMessageShapes(t *testing.T) {
	srv := newStreamServer(t)
	m := newTestManager(srv, Callbacks{})
	defer m.Disconnect()

	m.Connect()
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)

	m.SendTranscript("I led the migration")
	m.SendCode("fmt.Println(1)", "go")
	m.SendTimeUp()

	seen := map[string]models.OutboundMessage{}
	for i := 0; i < 3; i++ {
		select {
		case msg := <-srv.inbound:
			if msg.Type == models.MsgPing {
				i--
				continue
			}
			seen[msg.Type] = msg
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for outbound messages")
		}
	}

	assert.Equal(t, "I led the migration", seen[models.MsgTranscript].Content)
	assert.Equal(t, "fmt.Println(1)", seen[models.MsgCodeSubmission].Code)
	assert.Equal(t, "go", seen[models.MsgCodeSubmission].Language)
	assert.NotEmpty(t, seen[models.MsgTimeUp].Content)
}

func TestKeepalivePings(t *testing.T) {
	srv := newStreamServer(t)
	m := newTestManager(srv, Callbacks{})
	defer m.Disconnect()

	m.Connect()
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)

	select {
	case msg := <-srv.inbound:
		assert.Equal(t, models.MsgPing, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestReconnectAfterAbnormalClose(t *testing.T) {
	srv := newStreamServer(t)
	m := newTestManager(srv, Callbacks{})
	defer m.Disconnect()

	m.Connect()
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), srv.accepted.Load())

	// Kill the TCP connection without a close handshake: abnormal closure.
	closed := time.Now()
	srv.latestConn(t).Close()

	require.Eventually(t, func() bool { return srv.accepted.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(closed), 45*time.Millisecond,
		"reconnect must wait out the delay")
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)

	// Exactly one retry was scheduled for one close.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), srv.accepted.Load())
}

func TestNoReconnectAfterNormalClose(t *testing.T) {
	srv := newStreamServer(t)
	m := newTestManager(srv, Callbacks{})
	defer m.Disconnect()

	m.Connect()
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)

	c := srv.latestConn(t)
	require.NoError(t, c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")))

	require.Eventually(t, func() bool { return !m.IsConnected() }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), srv.accepted.Load())
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	srv := newStreamServer(t)
	m := newTestManager(srv, Callbacks{})

	m.Connect()
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)

	m.Disconnect()
	assert.False(t, m.IsConnected())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), srv.accepted.Load())
}

func TestStatusTransitions(t *testing.T) {
	srv := newStreamServer(t)

	var mu sync.Mutex
	var states []models.ConnectionStatus
	m := newTestManager(srv, Callbacks{
		OnStatus: func(s models.ConnectionStatus) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	m.Connect()
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)
	m.Disconnect()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.ConnectionStatus{models.ConnConnecting, models.ConnConnected, models.ConnDisconnected}, states[:3])
}
