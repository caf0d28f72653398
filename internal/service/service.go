// Package service runs long-living background components of server.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	Run(ctx context.Context) error
}

// Func adapts function to Service.
type Func func(ctx context.Context) error

func (f Func) Run(ctx context.Context) error { return f(ctx) }

type named struct {
	name string
	Service
}

// Manager runs services concurrently. First failed service cancels others.
type Manager struct {
	mu       sync.Mutex
	services []named
	group    *errgroup.Group
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds service.
func (m *Manager) Register(name string, s Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, named{name: name, Service: s})
}

// Run starts all registered services.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ctx := errgroup.WithContext(ctx)
	for _, s := range m.services {
		group.Go(func() error {
			err := s.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("service", s.name).Msg("service stopped with error")
				return err
			}
			log.Debug().Str("service", s.name).Msg("service stopped")
			return nil
		})
	}
	m.group = group
}

// Wait blocks until all services stopped and returns first error.
func (m *Manager) Wait() error {
	m.mu.Lock()
	group := m.group
	m.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}
