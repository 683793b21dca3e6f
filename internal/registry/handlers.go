package registry

import (
	"context"
	"fmt"
	"log/slog"
)

// Unit is the Go implementation behind a service or module type.
type Unit interface {
	// Start receives a snapshot of the component's settings at start time.
	Start(ctx context.Context, settings map[string]string) error
	Stop(ctx context.Context, force bool) error
}

// ServiceFactory builds the implementation of a named service.
type ServiceFactory func(name string) (Unit, error)

// ModuleFactory builds the implementation of a named module inside a service.
type ModuleFactory func(service, name string) (Unit, error)

// Plugin is implemented by every package that contributes component types.
type Plugin interface {
	Register(r *Registry)
}

// RegisterServiceType registers the factory used for `type` on service nodes.
func (r *Registry) RegisterServiceType(name string, factory ServiceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.serviceTypes[name]; exists {
		panic(fmt.Sprintf("service type '%s' already registered", name))
	}
	slog.Debug("Registering service type.", "type", name)
	r.serviceTypes[name] = factory
}

// RegisterModuleType registers the factory used for `type` on module nodes.
func (r *Registry) RegisterModuleType(name string, factory ModuleFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.moduleTypes[name]; exists {
		panic(fmt.Sprintf("module type '%s' already registered", name))
	}
	slog.Debug("Registering module type.", "type", name)
	r.moduleTypes[name] = factory
}

// NopUnit is a Unit that does nothing. It backs types whose only purpose is
// to carry settings and modules.
type NopUnit struct{}

func (NopUnit) Start(context.Context, map[string]string) error { return nil }
func (NopUnit) Stop(context.Context, bool) error               { return nil }
