// Package scheduler runs periodic maintenance tasks such as key rotation
// and cache sweeps on fixed intervals.
package scheduler

import (
	"context"
	"time"

	"github.com/keywheel/keywheel/pkg/logger"
)

// Task is a periodically running job. Stop halts the ticker and waits for
// an in-flight run to finish.
type Task struct {
	name string
	stop chan struct{}
	done chan struct{}
}

// Every starts fn on a fixed interval in its own goroutine. The first run
// happens one interval after the call, not immediately; callers that need
// an immediate run perform it synchronously before scheduling. The fn
// error is logged and the schedule keeps going.
func Every(interval time.Duration, name string, log logger.Logger, fn func(ctx context.Context) error) *Task {
	t := &Task{
		name: name,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				if err := fn(context.Background()); err != nil {
					log.Error(context.Background(), "scheduled task failed", err,
						logger.String("task", name))
				}
			}
		}
	}()

	return t
}

// Stop halts the schedule and blocks until the loop exits.
func (t *Task) Stop() {
	close(t.stop)
	<-t.done
}
