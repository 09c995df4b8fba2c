package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/domain"
)

// OverviewSource Описываем, что нам нужно от REST-поверхности
type OverviewSource interface {
	FetchOverview(ctx context.Context) (*domain.DashboardOverview, error)
}

// OverviewReconciler владеет каноничным снапшотом дашборда и сводит в него
// два расходящихся wire-формата: полный REST-снапшот (orders_summary, ...)
// и частичный push (orders, inventory, vehicles). Поля, которых нет во
// входящем обновлении, никогда не сбрасываются.
type OverviewReconciler struct {
	mu    sync.RWMutex
	state domain.DashboardOverview

	src     OverviewSource
	logger  *zap.Logger
	metrics *Metrics

	// onUpdate дергается после каждого успешного мержа (зеркало, нотификации).
	// Вызывается уже без удержания mu.
	onUpdate func(domain.DashboardOverview)
}

func NewOverviewReconciler(src OverviewSource, logger *zap.Logger, metrics *Metrics) *OverviewReconciler {
	return &OverviewReconciler{
		src:     src,
		logger:  logger.Named("overview"),
		metrics: metrics,
	}
}

// OnUpdate регистрирует единственного наблюдателя смерженного состояния.
func (r *OverviewReconciler) OnUpdate(fn func(domain.DashboardOverview)) {
	r.onUpdate = fn
}

// Snapshot возвращает копию каноничного состояния.
func (r *OverviewReconciler) Snapshot() domain.DashboardOverview {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Refresh полностью замещает состояние свежим REST-снапшотом.
// Ошибка бэкенда оставляет последнее известное состояние нетронутым.
func (r *OverviewReconciler) Refresh(ctx context.Context) error {
	overview, err := r.src.FetchOverview(ctx)
	if err != nil {
		r.metrics.RefreshFailures.WithLabelValues("overview").Inc()
		r.logger.Warn("overview refresh failed, keeping last known state", zap.Error(err))
		return err
	}

	r.mu.Lock()
	r.state = *overview
	snapshot := r.state
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// partialUpdate — сырое push-обновление. Ключи разбираем вручную, потому что
// push-словарь исторически расходится с REST-словарем.
type partialUpdate map[string]json.RawMessage

// ApplyPartial мержит частичное push-обновление. Для каждого из четырех
// мержируемых полей сначала проверяется канонический ключ, затем legacy-ключ
// push-канала; канонический побеждает, если пришли оба.
func (r *OverviewReconciler) ApplyPartial(raw json.RawMessage) {
	var update partialUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		r.metrics.FramesDropped.WithLabelValues("decode").Inc()
		r.logger.Debug("unparseable dashboard update dropped", zap.Error(err))
		return
	}

	r.mu.Lock()

	if v := pick(update, "orders_summary", "orders"); v != nil {
		mergeInto(v, &r.state.Orders, r.logger, "orders")
	}
	if v := pick(update, "inventory_summary", "inventory"); v != nil {
		mergeInto(v, &r.state.Inventory, r.logger, "inventory")
	}
	// "vehicles" двусмыслен: объект — это сводка по статусам, массив — полный
	// список машин. Дискриминатора в протоколе нет, различаем по форме JSON.
	if v, ok := update["vehicles_summary"]; ok {
		mergeInto(v, &r.state.VehiclesSummary, r.logger, "vehicles_summary")
	} else if v, ok := update["vehicles"]; ok && isObject(v) {
		mergeInto(v, &r.state.VehiclesSummary, r.logger, "vehicles_summary")
	}
	if v, ok := update["vehicles"]; ok && isArray(v) {
		mergeInto(v, &r.state.Vehicles, r.logger, "vehicles")
	}
	if v, ok := update["simulation"]; ok {
		mergeInto(v, &r.state.Simulation, r.logger, "simulation")
	}
	if v, ok := update["low_stock_details"]; ok && isArray(v) {
		mergeInto(v, &r.state.LowStockDetails, r.logger, "low_stock_details")
	}
	if v, ok := update["recent_anomalies"]; ok {
		mergeInto(v, &r.state.RecentAnomalies, r.logger, "recent_anomalies")
	}

	snapshot := r.state
	r.mu.Unlock()

	r.notify(snapshot)
}

func (r *OverviewReconciler) notify(snapshot domain.DashboardOverview) {
	if r.onUpdate != nil {
		r.onUpdate(snapshot)
	}
}

// pick возвращает значение первого присутствующего ключа (порядок = приоритет).
func pick(update partialUpdate, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := update[k]; ok {
			return v
		}
	}
	return nil
}

// mergeInto десериализует поле поверх текущего значения. Битое поле
// пропускаем — частичный мерж не должен портить соседей.
func mergeInto[T any](raw json.RawMessage, dst *T, logger *zap.Logger, field string) {
	var next T
	if err := json.Unmarshal(raw, &next); err != nil {
		logger.Debug("skipping malformed field in partial update",
			zap.String("field", field), zap.Error(err))
		return
	}
	*dst = next
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
