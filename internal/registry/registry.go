package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/vk/configurator/internal/component"
	"github.com/vk/configurator/internal/ctxlog"
)

var (
	ErrUnknownType  = errors.New("unknown component type")
	ErrDuplicate    = errors.New("component already exists")
	ErrNotFound     = errors.New("component not found")
	ErrInvalidState = errors.New("invalid lifecycle state")
)

// Registry holds the registered component types and every live component of
// a single host process.
type Registry struct {
	mu           sync.Mutex
	serviceTypes map[string]ServiceFactory
	moduleTypes  map[string]ModuleFactory
	services     map[string]*Service
	order        []string
	settings     map[string]string
	libraries    []string
}

var _ component.Server = (*Registry)(nil)

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		serviceTypes: make(map[string]ServiceFactory),
		moduleTypes:  make(map[string]ModuleFactory),
		services:     make(map[string]*Service),
		settings:     make(map[string]string),
	}
}

// CreateService instantiates a service of a registered type under a unique name.
func (r *Registry) CreateService(ctx context.Context, serviceType, name string) (component.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.serviceTypes[serviceType]
	if !ok {
		return nil, fmt.Errorf("service %q: %w %q", name, ErrUnknownType, serviceType)
	}
	if _, exists := r.services[name]; exists {
		return nil, fmt.Errorf("service %q: %w", name, ErrDuplicate)
	}

	unit, err := factory(name)
	if err != nil {
		return nil, fmt.Errorf("service %q: create %s: %w", name, serviceType, err)
	}

	svc := newService(r, serviceType, name, unit)
	r.services[name] = svc
	r.order = append(r.order, name)
	ctxlog.FromContext(ctx).Info("Service created.", "service", name, "type", serviceType)
	return svc, nil
}

// Service looks up a live service by name.
func (r *Registry) Service(name string) (component.Service, error) {
	svc, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Lookup is Service with the concrete type, for host-side callers.
func (r *Registry) Lookup(name string) (*Service, error) {
	return r.lookup(name)
}

func (r *Registry) lookup(name string) (*Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("service %q: %w", name, ErrNotFound)
	}
	return svc, nil
}

// Services returns every live service in creation order.
func (r *Registry) Services() []*Service {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Service, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.services[name])
	}
	return out
}

// SetSetting stores a process-wide setting; the last write for a key wins.
func (r *Registry) SetSetting(key, val string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = val
}

// Settings returns a copy of all process-wide settings.
func (r *Registry) Settings() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.settings)
}

// AddLibrary records a base library available to every service.
func (r *Registry) AddLibrary(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.libraries = append(r.libraries, path)
	return nil
}

// Libraries returns the process-wide base libraries in registration order.
func (r *Registry) Libraries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.libraries)
}

func (r *Registry) moduleFactory(moduleType string) (ModuleFactory, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.moduleTypes[moduleType]
	return f, ok
}

// StopAll stops every started module and service in reverse creation order.
// It keeps going after a failure and returns all errors joined.
func (r *Registry) StopAll(ctx context.Context, force bool) error {
	logger := ctxlog.FromContext(ctx)
	services := r.Services()

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		mods := svc.Modules()
		for j := len(mods) - 1; j >= 0; j-- {
			if mods[j].Status() != component.Started {
				continue
			}
			if err := mods[j].Stop(ctx, force); err != nil {
				errs = append(errs, err)
			}
		}
		if svc.Status() != component.Started {
			continue
		}
		if err := svc.Stop(ctx, force); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		logger.Warn("Some components failed to stop.", "failures", len(errs))
	}
	return errors.Join(errs...)
}
