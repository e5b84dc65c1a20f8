package device

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TaskFunc is run once per device serial.
type TaskFunc[T any] func(ctx context.Context, serial string) (T, error)

// Result contains the outcome of a task for a device.
type Result[T any] struct {
	Serial string
	Value  T
	Err    error
}

// Manager runs device-scoped tasks with bounded concurrency.
type Manager[T any] struct {
	workerLimit int
}

// Option configures a Manager.
type Option[T any] func(*Manager[T])

// WithWorkerLimit sets the maximum number of concurrent workers.
func WithWorkerLimit[T any](limit int) Option[T] {
	return func(m *Manager[T]) {
		m.workerLimit = limit
	}
}

// NewManager creates a Manager with optional configuration.
func NewManager[T any](opts ...Option[T]) *Manager[T] {
	m := &Manager[T]{workerLimit: runtime.NumCPU()}
	for _, opt := range opts {
		opt(m)
	}
	if m.workerLimit <= 0 {
		m.workerLimit = runtime.NumCPU()
	}
	return m
}

// Run executes task for every serial and returns one result per serial in
// input order. A failing task does not stop the others; serials not started
// before ctx is cancelled report ctx.Err().
func (m *Manager[T]) Run(ctx context.Context, serials []string, task TaskFunc[T]) []Result[T] {
	results := make([]Result[T], len(serials))
	g := new(errgroup.Group)
	g.SetLimit(m.workerLimit)

	for i, serial := range serials {
		results[i].Serial = serial
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		i, serial := i, serial
		g.Go(func() error {
			results[i].Value, results[i].Err = task(ctx, serial)
			return nil
		})
	}
	g.Wait()
	return results
}
