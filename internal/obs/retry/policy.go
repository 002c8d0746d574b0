package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

func DefaultKafkaPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "outbox_kafka",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("outbox retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox retries exhausted", zap.Error(err))
			}
		},
	}
}

// StorePolicy retries writes of check results. permanent errors stop the loop
// immediately.
func StorePolicy(log *zap.Logger, attempts int, permanent ...error) Policy {
	if attempts <= 0 {
		attempts = 5
	}
	return Policy{
		Name:     "health_apply",
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: 100 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return false
			}
			for _, p := range permanent {
				if errors.Is(err, p) {
					return false
				}
			}
			return true
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Debug("apply retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}

// RegistryPolicy covers reads of monitor definitions: a few quick attempts,
// after which the caller falls back to the next resync.
func RegistryPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "registry_read",
		Attempts: 3,
		Backoff:  ExpoJitter{Base: 250 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Debug("registry read retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}
