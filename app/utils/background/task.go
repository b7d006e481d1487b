// Package background runs work off the request path and hands back a handle
// whose failure is logged rather than propagated to the caller.
package background

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

type Task struct {
	name string
	done chan struct{}
	err  error
}

// Go starts fn in its own goroutine. The task context keeps the values of ctx
// but not its cancellation, so a finished request cannot abort a running warm.
// A zero timeout means no deadline beyond the one fn imposes itself.
func Go(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) *Task {
	task := &Task{name: name, done: make(chan struct{})}
	taskCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		taskCtx, cancel = context.WithTimeout(taskCtx, timeout)
	}

	go func() {
		defer close(task.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				task.err = fmt.Errorf("background task %s panicked: %v", name, r)
			}
			if task.err != nil {
				logger.GetLogger().WithFields(logrus.Fields{
					"task":  name,
					"error": task.err.Error(),
				}).Error("background: task failed")
			}
		}()
		task.err = fn(taskCtx)
	}()
	return task
}

// Completed returns a task that has already finished without running anything.
func Completed(name string) *Task {
	task := &Task{name: name, done: make(chan struct{})}
	close(task.done)
	return task
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err reports the task outcome. It is nil until Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx ends. A ctx error means the task
// is still running, not that it failed.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
