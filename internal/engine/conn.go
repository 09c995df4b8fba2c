package engine

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnManager владеет единственным постоянным WebSocket-соединением с
// системой записи. Разрыв по любой причине (ошибка чтения, закрытие сервером)
// приводит к одному отложенному переподключению с фиксированной задержкой.
// Одновременно жива максимум одна попытка подключения.
type ConnManager struct {
	url        string
	delay      time.Duration
	dialer     *websocket.Dialer
	dispatcher *Dispatcher
	logger     *zap.Logger
	metrics    *Metrics

	mu         sync.Mutex
	conn       *websocket.Conn
	connecting bool
	connected  bool
	retryTimer *time.Timer
	closed     bool
}

func NewConnManager(url string, delay time.Duration, d *Dispatcher, logger *zap.Logger, metrics *Metrics) *ConnManager {
	return &ConnManager{
		url:        url,
		delay:      delay,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		dispatcher: d,
		logger:     logger.Named("realtime"),
		metrics:    metrics,
	}
}

// Connect открывает канал, если он еще не открыт. Повторный вызов при живом
// соединении или идущем дозвоне — no-op.
func (m *ConnManager) Connect() {
	m.mu.Lock()
	if m.closed || m.conn != nil || m.connecting {
		m.mu.Unlock()
		return
	}
	m.connecting = true
	m.mu.Unlock()

	conn, _, err := m.dialer.Dial(m.url, nil)

	m.mu.Lock()
	m.connecting = false
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("realtime dial failed", zap.String("url", m.url), zap.Error(err))
		m.scheduleReconnect()
		return
	}
	if m.closed {
		// Сессия завершилась, пока мы дозванивались
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.connected = true
	m.mu.Unlock()

	m.metrics.Connected.Set(1)
	m.logger.Info("realtime channel connected", zap.String("url", m.url))

	go m.readLoop(conn)
}

// IsConnected отражает живость push-канала (индикатор в UI).
func (m *ConnManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Close разрывает соединение и отменяет отложенное переподключение.
// После Close менеджер мертв окончательно.
func (m *ConnManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.connected = false
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	m.metrics.Connected.Set(0)
	if conn != nil {
		conn.Close()
	}
}

// readLoop вычитывает кадры до первой ошибки. Кадры доставляются строго
// в порядке прихода: один кадр полностью раздается подписчикам прежде,
// чем будет прочитан следующий.
func (m *ConnManager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("realtime read error", zap.Error(err))
			}
			m.handleClose(conn)
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
			// Битый кадр гасим молча: теряем один кадр, но не канал
			m.metrics.FramesDropped.WithLabelValues("decode").Inc()
			m.logger.Debug("malformed frame dropped", zap.Error(err))
			continue
		}

		m.dispatcher.Dispatch(frame)
	}
}

func (m *ConnManager) handleClose(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn != conn {
		// Уже заменено или закрыто извне — этот разрыв не наш
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.connected = false
	closed := m.closed
	m.mu.Unlock()

	m.metrics.Connected.Set(0)
	conn.Close()

	if closed {
		return
	}
	m.logger.Info("realtime channel closed, reconnect scheduled", zap.Duration("delay", m.delay))
	m.scheduleReconnect()
}

// scheduleReconnect взводит ровно один таймер переподключения.
func (m *ConnManager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.retryTimer != nil {
		return
	}
	m.retryTimer = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		m.retryTimer = nil
		m.mu.Unlock()
		m.metrics.Reconnects.Inc()
		m.Connect()
	})
}
