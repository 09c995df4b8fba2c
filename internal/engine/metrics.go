package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: принятые push-кадры по типу
	FramesReceived *prometheus.CounterVec

	// Errors: кадры, выброшенные до диспетчеризации (decode, no_handler)
	FramesDropped *prometheus.CounterVec

	// Liveness: состояние realtime-канала (0 - разрыв, 1 - подключен)
	Connected prometheus.Gauge

	// Reconnects: сколько раз канал поднимался заново
	Reconnects prometheus.Counter

	// Backstop: неудачные полные pull'ы по источнику (overview, events, timeline, pending)
	RefreshFailures *prometheus.CounterVec

	// Latency команд оператора (approve/reject/simulation)
	CommandDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		FramesReceived: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_frames_received_total",
			Help: "Push frames accepted from the realtime channel, by type tag.",
		}, []string{"type"}),

		FramesDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_frames_dropped_total",
			Help: "Push frames dropped before dispatch, by reason.",
		}, []string{"reason"}),

		Connected: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "console_realtime_connected",
			Help: "Whether the realtime channel is currently open (1) or down (0).",
		}),

		Reconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "console_realtime_reconnects_total",
			Help: "Number of reconnection attempts after a channel close.",
		}),

		RefreshFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_refresh_failures_total",
			Help: "Failed backstop pulls from the system of record, by source.",
		}, []string{"source"}),

		CommandDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_command_duration_seconds",
			Help:    "Latency of operator commands forwarded to the system of record.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command", "status"}),
	}
}
