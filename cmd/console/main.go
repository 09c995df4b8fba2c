package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/connectors"
	"github.com/xela07ax/logitower-console/internal/console/server"
	"github.com/xela07ax/logitower-console/internal/engine"
	"github.com/xela07ax/logitower-console/internal/infra"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. Опциональное зеркало состояния в Redis
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Зеркало вторично: консоль живет и без него
			logger.Warn("redis unreachable, state mirror disabled", zap.Error(err))
			rdb = nil
		}
		cancel()
	}

	// 3. Клиент системы записи (Control Tower backend)
	tower := connectors.NewTowerClient(cfg.API.BaseURL, cfg.API.Timeout, logger)

	// 4. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// 5. Ядро: сессия с realtime-каналом и бэкстопом
	session := engine.NewSession(engine.ParamsFromConfig(cfg), tower, rdb, logger, metrics)
	session.Start()

	// 6. Локальный HTTP-фасад
	srv := server.New(cfg.Server, session, session, tower, reg, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("console API crashed", zap.Error(err))
		}
	}()

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop // Ждем сигнал

	logger.Info("console stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	session.Stop()
	logger.Info("console exited properly")
}
