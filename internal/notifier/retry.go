package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecodeclub/ekit/retry"
)

// ErrRetriesExhausted wraps the last delivery error once the strategy gives up.
var ErrRetriesExhausted = errors.New("notifier: retries exhausted")

// RetrySender retries a Sender with a fresh strategy per message.
type RetrySender struct {
	next      Sender
	retryFunc func() retry.Strategy
}

// NewRetrySender wraps next. fac is called once per Send.
func NewRetrySender(next Sender, fac func() retry.Strategy) *RetrySender {
	return &RetrySender{next: next, retryFunc: fac}
}

// ExponentialBackoff returns a strategy factory for NewRetrySender.
func ExponentialBackoff(initial, maxInterval time.Duration, maxRetries int32) (func() retry.Strategy, error) {
	// Validate once up front so the factory itself cannot fail.
	if _, err := retry.NewExponentialBackoffRetryStrategy(initial, maxInterval, maxRetries); err != nil {
		return nil, err
	}
	return func() retry.Strategy {
		s, _ := retry.NewExponentialBackoffRetryStrategy(initial, maxInterval, maxRetries)
		return s
	}, nil
}

func (s *RetrySender) Send(ctx context.Context, msg Message) error {
	var timer *time.Timer
	strategy := s.retryFunc()
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		err := s.next.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, ErrNotConfigured) {
			return err
		}

		interval, ok := strategy.Next()
		if !ok {
			return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		}
		if timer == nil {
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
