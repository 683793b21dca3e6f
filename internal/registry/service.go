package registry

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/vk/configurator/internal/component"
	"github.com/vk/configurator/internal/ctxlog"
)

// lifecycle guards the Status transitions shared by services and modules.
type lifecycle struct {
	mu     sync.Mutex
	status component.Status
}

func (l *lifecycle) Status() component.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// transition moves from -> via, or fails if the component is not in from.
func (l *lifecycle) transition(from, via component.Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != from {
		return fmt.Errorf("%w: is %s, expected %s", ErrInvalidState, l.status, from)
	}
	l.status = via
	return nil
}

func (l *lifecycle) set(s component.Status) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}

// start runs fn between Stopped -> Starting -> Started. A failure reverts to Stopped.
func (l *lifecycle) start(fn func() error) error {
	if err := l.transition(component.Stopped, component.Starting); err != nil {
		return err
	}
	if err := fn(); err != nil {
		l.set(component.Stopped)
		return err
	}
	l.set(component.Started)
	return nil
}

// stop runs fn between Started -> Stopping -> Stopped. A failed non-forced
// stop leaves the component Started.
func (l *lifecycle) stop(force bool, fn func() error) error {
	if err := l.transition(component.Started, component.Stopping); err != nil {
		return err
	}
	if err := fn(); err != nil && !force {
		l.set(component.Started)
		return err
	}
	l.set(component.Stopped)
	return nil
}

// Service is a live service created from a registered service type.
type Service struct {
	lifecycle

	name     string
	typ      string
	unit     Unit
	registry *Registry

	mu        sync.Mutex
	settings  map[string]string
	libraries []string
	modules   map[string]*Module
	order     []string
}

var _ component.Service = (*Service)(nil)

func newService(r *Registry, typ, name string, unit Unit) *Service {
	return &Service{
		name:     name,
		typ:      typ,
		unit:     unit,
		registry: r,
		settings: make(map[string]string),
		modules:  make(map[string]*Module),
	}
}

func (s *Service) Name() string { return s.name }
func (s *Service) Type() string { return s.typ }

// Start starts the service implementation with a snapshot of its settings.
func (s *Service) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("service", s.name)
	err := s.start(func() error { return s.unit.Start(ctx, s.Settings()) })
	if err != nil {
		return fmt.Errorf("start service %q: %w", s.name, err)
	}
	logger.Info("Service started.")
	return nil
}

// Stop stops the service implementation. Its modules are left untouched.
func (s *Service) Stop(ctx context.Context, force bool) error {
	logger := ctxlog.FromContext(ctx).With("service", s.name)
	err := s.stop(force, func() error { return s.unit.Stop(ctx, force) })
	if err != nil {
		return fmt.Errorf("stop service %q: %w", s.name, err)
	}
	logger.Info("Service stopped.", "force", force)
	return nil
}

// CreateModule instantiates a module of a registered type inside this service.
func (s *Service) CreateModule(ctx context.Context, moduleType, name string) (component.Module, error) {
	factory, ok := s.registry.moduleFactory(moduleType)
	if !ok {
		return nil, fmt.Errorf("module %s/%s: %w %q", s.name, name, ErrUnknownType, moduleType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.modules[name]; exists {
		return nil, fmt.Errorf("module %s/%s: %w", s.name, name, ErrDuplicate)
	}

	unit, err := factory(s.name, name)
	if err != nil {
		return nil, fmt.Errorf("module %s/%s: create %s: %w", s.name, name, moduleType, err)
	}

	m := &Module{service: s.name, name: name, typ: moduleType, unit: unit, settings: map[string]string{}}
	s.modules[name] = m
	s.order = append(s.order, name)
	ctxlog.FromContext(ctx).Info("Module created.", "service", s.name, "module", name, "type", moduleType)
	return m, nil
}

// Module looks up a module of this service by name.
func (s *Service) Module(name string) (component.Module, error) {
	m, err := s.LookupModule(name)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// LookupModule is Module with the concrete type.
func (s *Service) LookupModule(name string) (*Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[name]
	if !ok {
		return nil, fmt.Errorf("module %s/%s: %w", s.name, name, ErrNotFound)
	}
	return m, nil
}

// Modules returns the service's modules in creation order.
func (s *Service) Modules() []*Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Module, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.modules[name])
	}
	return out
}

func (s *Service) SetSetting(key, val string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = val
}

func (s *Service) Settings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.settings)
}

func (s *Service) AddLibrary(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.libraries = append(s.libraries, path)
	return nil
}

func (s *Service) Libraries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.libraries)
}
