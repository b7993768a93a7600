package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/rosterhq/roster/pkg/observability"
)

// SafeGo runs fn in a goroutine with panic recovery, a timeout, and error
// logging. Use it for fire-and-forget work that must never take the request
// down with it.
func SafeGo(parent context.Context, timeout time.Duration, name string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(withoutCancel(parent), timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"task":  name,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", name).Warn("background task failed")
		}
	}()
}

// withoutCancel detaches from the parent's cancellation while keeping its
// values. Request-scoped work outlives the request that spawned it.
func withoutCancel(parent context.Context) context.Context {
	if parent == nil {
		return context.Background()
	}
	return context.WithoutCancel(parent)
}
