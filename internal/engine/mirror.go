package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/domain"
	"github.com/xela07ax/logitower-console/internal/infra"
)

// Mirror ретранслирует принятое состояние в Redis: соседние инструменты
// (алертинг, витрины) читают уже смерженный снапшот, не повторяя логику
// reconciliation. Сбой Redis логируется и никогда не эскалирует — зеркало
// вторично по отношению к каноничному состоянию в памяти.
type Mirror struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewMirror(rdb *redis.Client, logger *zap.Logger) *Mirror {
	return &Mirror{rdb: rdb, logger: logger.Named("mirror")}
}

// PublishFrame ретранслирует push-кадр как есть. Кадры agent_event
// дополнительно уходят в выделенный канал для подписчиков-аналитиков.
func (m *Mirror) PublishFrame(ctx context.Context, frame Frame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := m.rdb.Publish(ctx, infra.RedisChanFrames, raw).Err(); err != nil {
		m.logger.Warn("frame relay failed", zap.String("type", frame.Type), zap.Error(err))
		return
	}
	if frame.Type == "agent_event" {
		if err := m.rdb.Publish(ctx, infra.RedisChanEvents, raw).Err(); err != nil {
			m.logger.Warn("agent event relay failed", zap.Error(err))
		}
	}
}

// StoreOverview кэширует последний каноничный снапшот. TTL страхует
// читателей от устаревшего состояния после падения консоли.
func (m *Mirror) StoreOverview(ctx context.Context, overview domain.DashboardOverview) {
	raw, err := json.Marshal(overview)
	if err != nil {
		return
	}
	if err := m.rdb.Set(ctx, infra.RedisKeyOverview, raw, time.Minute).Err(); err != nil {
		m.logger.Warn("overview cache write failed", zap.Error(err))
	}
}

// SetConnected публикует живость push-канала.
func (m *Mirror) SetConnected(ctx context.Context, connected bool) {
	val := "false"
	if connected {
		val = "true"
	}
	if err := m.rdb.Set(ctx, infra.RedisKeyConnection, val, time.Minute).Err(); err != nil {
		m.logger.Warn("connection flag write failed", zap.Error(err))
	}
}
