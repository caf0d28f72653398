// Package store combines durable message logs the hub persists publications into.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/metrics"
)

// Backend is a named message log.
type Backend interface {
	Name() string
	Persist(ctx context.Context, m *hub.Message) error
}

// Multi persists message into every backend in order. Publication fails if
// any backend fails, errors of all backends are joined.
type Multi []Backend

// Persist implements hub.Store.
func (m Multi) Persist(ctx context.Context, msg *hub.Message) error {
	var errs []error
	for _, b := range m {
		started := time.Now()
		err := b.Persist(ctx, msg)
		metrics.ObservePersist(started, b.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Names of backends.
func (m Multi) Names() []string {
	names := make([]string, 0, len(m))
	for _, b := range m {
		names = append(names, b.Name())
	}
	return names
}
