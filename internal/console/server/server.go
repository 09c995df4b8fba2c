package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/logitower-console/internal/console/handler"
	"github.com/xela07ax/logitower-console/internal/infra"
)

// Server — локальный HTTP-фасад консоли: каноничное состояние, команды
// оператора, pass-through симуляции и метрики.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func New(
	cfg infra.ServerConfig,
	state handler.StateSource,
	decisions handler.DecisionService,
	sim handler.SimulationGateway,
	reg *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	r := chi.NewRouter()

	r.Mount("/state", handler.NewStateHandler(state).Routes())
	r.Mount("/actions", handler.NewDecisionHandler(decisions).Routes())
	r.Mount("/simulation", handler.NewSimulationHandler(sim).Routes())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger.Named("http"),
	}
}

func (s *Server) Start() error {
	s.logger.Info("console API started", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
