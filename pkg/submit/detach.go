package submit

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Detach runs fn in its own goroutine with a context that expires after
// timeout. The outcome is only logged. The returned channel is closed once fn
// has returned.
func Detach(ctx context.Context, timeout time.Duration, log logr.Logger, name string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})

	// The task must not be cancelled together with the caller.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	go func() {
		defer close(done)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Info("Background task failed", "task", name, "error", err.Error())
			return
		}
		log.V(1).Info("Background task finished", "task", name)
	}()

	return done
}

// Wait blocks until every channel is closed or timeout elapses.
func Wait(timeout time.Duration, tasks ...<-chan struct{}) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for _, done := range tasks {
		select {
		case <-done:
		case <-deadline.C:
			return false
		}
	}
	return true
}
