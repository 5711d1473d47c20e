// Package bootstrap wires the catalog together and owns its lifecycle.
package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
)

// App runs one unit of work and releases its resources afterwards.
type App struct {
	mu    sync.Mutex
	hooks []func(ctx context.Context) error
}

func New() *App {
	return &App{}
}

// AddShutdownHook registers a function to call once Run finishes.
// Hooks run in reverse order (LIFO). Thread-safe.
func (a *App) AddShutdownHook(fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, fn)
}

// Run executes run with a context cancelled on OS interrupt, then calls the
// shutdown hooks whether run succeeded or not.
func (a *App) Run(ctx context.Context, run func(ctx context.Context) error) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	err := run(ctx)
	return errors.Join(err, a.shutdown(context.WithoutCancel(ctx)))
}

func (a *App) shutdown(ctx context.Context) error {
	a.mu.Lock()
	hooks := a.hooks
	a.hooks = nil
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
