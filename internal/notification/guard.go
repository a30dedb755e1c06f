package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned while the provider circuit is open.
var ErrUnavailable = errors.New("notification provider unavailable")

// GuardConfig tunes Guard.
type GuardConfig struct {
	Name          string
	RatePerSecond int
	MaxFailures   int
	OpenTimeout   time.Duration
}

// Guard throttles outbound sends and stops calling a provider that keeps
// failing until OpenTimeout has passed.
type Guard struct {
	next    Notifier
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
}

// NewGuard wraps next with a rate limiter and a circuit breaker.
func NewGuard(next Notifier, cfg GuardConfig, logger *slog.Logger) *Guard {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	maxFailures := uint32(cfg.MaxFailures)

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("notification breaker state", slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
			}
		},
	}
	return &Guard{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

// Send waits for a send slot, then forwards message unless the circuit is open.
func (g *Guard) Send(ctx context.Context, message Message) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification throttled: %w", err)
	}
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.Send(ctx, message)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return err
}

// State reports the breaker state: closed, half-open or open.
func (g *Guard) State() string {
	return g.cb.State().String()
}
