package engine

import (
	"encoding/json"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Frame — входящий push-кадр realtime-канала.
type Frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// FrameHandler получает полезную нагрузку кадра своего типа.
type FrameHandler func(data json.RawMessage)

// Dispatcher раскладывает кадры по подписчикам согласно тегу типа.
// Реестр живет внутри экземпляра, а не на уровне пакета: жизненный цикл
// подписок совпадает с жизненным циклом сессии, которая его создала.
type Dispatcher struct {
	mu sync.RWMutex
	// Внутренний ключ — идентичность функции-обработчика. Повторная
	// подписка того же обработчика на тот же тип — no-op (семантика множества).
	handlers map[string]map[uintptr]FrameHandler
	// tap видит каждый распознанный кадр целиком, до раздачи по типам
	// (ретрансляция в зеркало). Устанавливается один раз при сборке сессии.
	tap     func(Frame)
	logger  *zap.Logger
	metrics *Metrics
}

func NewDispatcher(logger *zap.Logger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]map[uintptr]FrameHandler),
		logger:   logger.Named("dispatcher"),
		metrics:  metrics,
	}
}

// Subscribe регистрирует обработчик и возвращает функцию отписки.
// Отписка идемпотентна и безопасна во время диспетчеризации.
func (d *Dispatcher) Subscribe(frameType string, h FrameHandler) func() {
	key := reflect.ValueOf(h).Pointer()

	d.mu.Lock()
	set, ok := d.handlers[frameType]
	if !ok {
		set = make(map[uintptr]FrameHandler)
		d.handlers[frameType] = set
	}
	set[key] = h
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if set, ok := d.handlers[frameType]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(d.handlers, frameType)
			}
		}
	}
}

// Tap устанавливает наблюдателя всех кадров. Не для бизнес-логики —
// только для сквозной ретрансляции.
func (d *Dispatcher) Tap(fn func(Frame)) {
	d.tap = fn
}

// Dispatch доставляет кадр всем текущим подписчикам его типа.
// Итерируем по снапшоту: обработчик вправе отписать себя (или соседа)
// прямо из колбэка, не ломая цикл доставки.
func (d *Dispatcher) Dispatch(frame Frame) {
	d.mu.RLock()
	set := d.handlers[frame.Type]
	snapshot := make([]FrameHandler, 0, len(set))
	for _, h := range set {
		snapshot = append(snapshot, h)
	}
	d.mu.RUnlock()

	if d.tap != nil {
		d.tap(frame)
	}

	if len(snapshot) == 0 {
		// Неизвестный тип — не ошибка, просто никто не слушает
		d.metrics.FramesDropped.WithLabelValues("no_handler").Inc()
		d.logger.Debug("frame dropped: no handler", zap.String("type", frame.Type))
		return
	}

	d.metrics.FramesReceived.WithLabelValues(frame.Type).Inc()
	for _, h := range snapshot {
		h(frame.Data)
	}
}
