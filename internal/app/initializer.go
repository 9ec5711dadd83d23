package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/log"
)

// Initializer builds the query-side App exactly once, no matter how many
// requests race on the first call. A failed initialization is sticky: every
// caller sees the same error and the service stays not-ready.
type Initializer struct {
	cfg    *config.Config
	logger log.Logger

	once  sync.Once
	ready atomic.Bool
	app   *App
	err   error
}

// NewInitializer returns an initializer that will build the App from cfg on
// first use.
func NewInitializer(cfg *config.Config, logger log.Logger) *Initializer {
	return &Initializer{cfg: cfg, logger: logger}
}

// App returns the shared App, initializing it on the first call. Concurrent
// first callers block until the single initialization completes.
func (i *Initializer) App(ctx context.Context) (*App, error) {
	i.once.Do(func() {
		i.app, i.err = Setup(ctx, i.cfg, i.logger)
		if i.err == nil {
			i.ready.Store(true)
		}
	})
	return i.app, i.err
}

// Ready reports whether initialization has completed successfully.
func (i *Initializer) Ready() bool {
	return i.ready.Load()
}

// Close releases the App if it was initialized.
func (i *Initializer) Close() error {
	if i.ready.Load() {
		return i.app.Close()
	}
	return nil
}
