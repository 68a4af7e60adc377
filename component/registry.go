package component

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/asynchttp/logger"
)

// DefaultStopTimeout bounds each component's Stop call.
const DefaultStopTimeout = 10 * time.Second

// componentEntry holds a component and its started state.
type componentEntry struct {
	component Component
	started   bool
}

// Registry manages component lifecycle with deterministic ordering.
// Components are started in registration order and stopped in reverse order.
type Registry struct {
	entries     []*componentEntry
	lookup      map[string]*componentEntry
	stopTimeout time.Duration
	log         *logger.Logger
	mu          sync.RWMutex
}

// NewRegistry creates a new component registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:     make([]*componentEntry, 0),
		lookup:      make(map[string]*componentEntry),
		stopTimeout: DefaultStopTimeout,
		log:         logger.Get("registry"),
	}
}

// SetStopTimeout changes the per-component stop bound.
func (r *Registry) SetStopTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.stopTimeout = d
	}
}

// Register adds a component to the registry. Components are started in
// the order they are registered, so register dependencies first.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.lookup[name]; exists {
		return fmt.Errorf("component %s already registered", name)
	}

	entry := &componentEntry{component: c}
	r.entries = append(r.entries, entry)
	r.lookup[name] = entry

	fields := logger.Fields(logger.FieldComponent, name)
	if d, ok := c.(Describable); ok {
		desc := d.Describe()
		fields["type"] = desc.Type
		fields["details"] = desc.Details
	}
	r.log.Debug("component registered", fields)
	return nil
}

// StartAll starts all components in registration order. On failure the
// components already started are stopped again in reverse order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Info("starting components", logger.Fields("count", len(r.entries)))

	for _, entry := range r.entries {
		if entry.started {
			continue
		}
		name := entry.component.Name()
		if err := entry.component.Start(ctx); err != nil {
			r.log.Error("component start failed", logger.Fields(logger.FieldComponent, name, logger.FieldError, err.Error()))
			if stopErr := r.stopLocked(ctx); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		entry.started = true
		r.log.Debug("component started", logger.Fields(logger.FieldComponent, name))
	}
	return nil
}

// StopAll gracefully stops all started components in reverse registration order.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(ctx)
}

func (r *Registry) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(r.entries) - 1; i >= 0; i-- {
		entry := r.entries[i]
		if !entry.started {
			continue
		}

		name := entry.component.Name()
		stopCtx, cancel := context.WithTimeout(ctx, r.stopTimeout)
		if err := entry.component.Stop(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", name, err))
			r.log.Error("component stop failed", logger.Fields(logger.FieldComponent, name, logger.FieldError, err.Error()))
		} else {
			r.log.Debug("component stopped", logger.Fields(logger.FieldComponent, name))
		}
		entry.started = false
		cancel()
	}
	return errors.Join(errs...)
}

// HealthAll returns health status for all registered components.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]Health, 0, len(r.entries))
	for _, entry := range r.entries {
		results = append(results, entry.component.Health(ctx))
	}
	return results
}

// Get returns a registered component by name, or nil if not found.
func (r *Registry) Get(name string) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, exists := r.lookup[name]; exists {
		return entry.component
	}
	return nil
}

// All returns all registered components in registration order.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Component, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry.component)
	}
	return result
}
