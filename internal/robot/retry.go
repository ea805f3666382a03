package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/robot-brain/internal/metrics"
)

// RetryPolicy bounds an external blocking call: each attempt gets its own
// timeout and failed attempts back off exponentially.
type RetryPolicy struct {
	Attempts  int           `mapstructure:"attempts" yaml:"attempts"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	BaseDelay time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay" yaml:"max_delay"`

	Sleep func(context.Context, time.Duration) error `mapstructure:"-" yaml:"-"`
}

// DefaultRetryPolicy returns three attempts of 20s each, backing off from 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		Timeout:   20 * time.Second,
		BaseDelay: time.Second,
		MaxDelay:  4 * time.Second,
	}
}

// Delay returns the backoff before attempt n (1-based; attempt 1 has none).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n <= 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << (n - 2)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, attempts run out or ctx is done. op names the
// call in logs and metrics. The last error is returned wrapped.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var err error
	for n := 1; n <= attempts; n++ {
		if d := p.Delay(n); d > 0 {
			log.Warn().Str("component", "retry").Str("op", op).Int("attempt", n).Int("of", attempts).Msg("retrying")
			if serr := sleep(ctx, d); serr != nil {
				return fmt.Errorf("%s: %w", op, serr)
			}
		}

		err = p.attempt(ctx, fn)
		metrics.CollaboratorCalls.WithLabelValues(op, metrics.Result(err)).Inc()
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Str("component", "retry").Str("op", op).Int("attempt", n).Msg("attempt failed")
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%s failed after retries: %w", op, err)
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(actx)
}
