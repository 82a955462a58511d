package backend

import (
	"context"
	stderrors "errors"
	"fmt"

	"resumefit/internal/config"
	"resumefit/internal/errors"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
)

// Breaker guards one backend endpoint with the circuit breaker pattern.
// A nil Breaker executes calls directly.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[*resty.Response]
}

// NewBreaker creates a circuit breaker for endpoint, or nil when disabled
func NewBreaker(endpoint Endpoint, cfg config.CircuitBreakerConfig, logger *errors.Logger) *Breaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("backend-%s", endpoint),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests &&
				failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"endpoint", string(endpoint),
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &Breaker{
		cb: gobreaker.NewCircuitBreaker[*resty.Response](settings),
	}
}

// Execute runs fn with circuit breaker protection
func (b *Breaker) Execute(fn func() (*resty.Response, error)) (*resty.Response, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (b *Breaker) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (b *Breaker) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
