package payment

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"petstore/internal/metrics"
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// 入力エラーはプロバイダ障害として数えない
		IsSuccessful: func(err error) bool {
			return err == nil || isRejected(err)
		},
	})
}

// 結果はブレーカー名をproviderラベルにして数える
func executeWithBreaker[T any](cb *gobreaker.CircuitBreaker, m *metrics.Metrics, fn func() (T, error)) (T, error) {
	start := time.Now()
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	m.ProviderCall(cb.Name(), callOutcome(err), time.Since(start))
	if err != nil {
		return *new(T), err
	}
	return res.(T), nil
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isRejected(err):
		return "rejected"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "open"
	default:
		return "error"
	}
}
