package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Guard защищает вызовы к системе записи: Rate Limiter -> Circuit Breaker -> Retry.
// Дашборд обязан пережить любой сбой бэкенда, поэтому ни одна из защит
// не эскалирует ошибку дальше вызывающего — тот оставляет последнее
// известное состояние нетронутым.
type Guard struct {
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewGuard(name string) *Guard {
	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
	})

	// Лимитер щадит бэкенд: бэкстоп + push-триггеры дают всплески запросов
	limiter := rate.NewLimiter(rate.Limit(20), 10)

	return &Guard{cb: cb, limiter: limiter}
}

// Do выполняет вызов с ретраями. attempts == 1 для команд (approve/reject):
// повтор команды небезопасен, решение о ретрае остается за оператором.
func (g *Guard) Do(ctx context.Context, attempts uint, call func(ctx context.Context) error) error {
	// 1. Rate Limiter
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	_, err := g.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(attempts),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если бэкенд вернул 429 с Retry-After — уважаем его
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return call(tCtx)
		})

		return nil, retryErr
	})

	return err
}
