package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsTestServer — realtime-бэкенд для тестов: считает подключения и
// позволяет слать кадры / рвать соединение с серверной стороны.
type wsTestServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	dials int
	conns []*websocket.Conn
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	ws := &wsTestServer{}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.mu.Lock()
		ws.dials++
		ws.conns = append(ws.conns, conn)
		ws.mu.Unlock()
		// Вычитываем входящее до ошибки, чтобы соединение жило
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ws.Close)
	return ws
}

func (ws *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ws.URL, "http")
}

func (ws *wsTestServer) dialCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.dials
}

func (ws *wsTestServer) send(t *testing.T, payload string) {
	t.Helper()
	ws.mu.Lock()
	conn := ws.conns[len(ws.conns)-1]
	ws.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("server send failed: %v", err)
	}
}

func (ws *wsTestServer) dropLast() {
	ws.mu.Lock()
	conn := ws.conns[len(ws.conns)-1]
	ws.mu.Unlock()
	conn.Close()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newTestConn(ws *wsTestServer, d *Dispatcher, delay time.Duration) *ConnManager {
	return NewConnManager(ws.wsURL(), delay, d, zap.NewNop(), NewMetrics(nil))
}

func TestConnManager_ConnectAndDispatch(t *testing.T) {
	ws := newWSTestServer(t)
	d := testDispatcher()

	var mu sync.Mutex
	var got []string
	d.Subscribe("agent_event", func(data json.RawMessage) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})

	m := newTestConn(ws, d, 50*time.Millisecond)
	defer m.Close()
	m.Connect()

	waitFor(t, time.Second, m.IsConnected)

	ws.send(t, `{"type":"agent_event","data":{"event_id":"E1"}}`)
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	if got[0] != `{"event_id":"E1"}` {
		t.Fatalf("handler got %q", got[0])
	}
	mu.Unlock()
}

func TestConnManager_MalformedFrameDoesNotKillChannel(t *testing.T) {
	ws := newWSTestServer(t)
	d := testDispatcher()

	var mu sync.Mutex
	delivered := 0
	d.Subscribe("agent_event", func(json.RawMessage) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	m := newTestConn(ws, d, 50*time.Millisecond)
	defer m.Close()
	m.Connect()
	waitFor(t, time.Second, m.IsConnected)

	// Битый JSON и кадр без типа — оба молча выброшены
	ws.send(t, `{not json at all`)
	ws.send(t, `{"data":{"orphan":true}}`)
	ws.send(t, `{"type":"agent_event","data":{"event_id":"E2"}}`)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 1
	})
	if !m.IsConnected() {
		t.Fatal("decode failure escalated to disconnect")
	}
}

func TestConnManager_ConnectIsIdempotent(t *testing.T) {
	ws := newWSTestServer(t)
	m := newTestConn(ws, testDispatcher(), 50*time.Millisecond)
	defer m.Close()

	m.Connect()
	waitFor(t, time.Second, m.IsConnected)
	m.Connect()
	m.Connect()

	// Дополнительным подключениям взяться неоткуда
	time.Sleep(50 * time.Millisecond)
	if n := ws.dialCount(); n != 1 {
		t.Fatalf("dial count = %d, want 1", n)
	}
}

func TestConnManager_ReconnectsExactlyOnceAfterClose(t *testing.T) {
	ws := newWSTestServer(t)
	m := newTestConn(ws, testDispatcher(), 50*time.Millisecond)
	defer m.Close()

	m.Connect()
	waitFor(t, time.Second, m.IsConnected)

	ws.dropLast()
	waitFor(t, time.Second, func() bool { return !m.IsConnected() })

	// После фиксированной задержки канал поднимается заново — один раз
	waitFor(t, time.Second, m.IsConnected)
	time.Sleep(150 * time.Millisecond)
	if n := ws.dialCount(); n != 2 {
		t.Fatalf("dial count = %d, want 2 (one reconnect)", n)
	}
}

func TestConnManager_CloseCancelsPendingReconnect(t *testing.T) {
	ws := newWSTestServer(t)
	m := newTestConn(ws, testDispatcher(), 80*time.Millisecond)

	m.Connect()
	waitFor(t, time.Second, m.IsConnected)

	ws.dropLast()
	waitFor(t, time.Second, func() bool { return !m.IsConnected() })

	// Закрываемся до истечения задержки переподключения
	m.Close()
	time.Sleep(200 * time.Millisecond)

	if n := ws.dialCount(); n != 1 {
		t.Fatalf("dial count = %d after teardown, want 1", n)
	}
	if m.IsConnected() {
		t.Fatal("connected after close")
	}
}
