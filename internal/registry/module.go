package registry

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/vk/configurator/internal/component"
	"github.com/vk/configurator/internal/ctxlog"
)

// Module is a live module owned by a Service.
type Module struct {
	lifecycle

	service string
	name    string
	typ     string
	unit    Unit

	mu       sync.Mutex
	settings map[string]string
}

var _ component.Module = (*Module)(nil)

func (m *Module) Name() string    { return m.name }
func (m *Module) Type() string    { return m.typ }
func (m *Module) Service() string { return m.service }

func (m *Module) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("service", m.service, "module", m.name)
	err := m.start(func() error { return m.unit.Start(ctx, m.Settings()) })
	if err != nil {
		return fmt.Errorf("start module %s/%s: %w", m.service, m.name, err)
	}
	logger.Info("Module started.")
	return nil
}

func (m *Module) Stop(ctx context.Context, force bool) error {
	logger := ctxlog.FromContext(ctx).With("service", m.service, "module", m.name)
	err := m.stop(force, func() error { return m.unit.Stop(ctx, force) })
	if err != nil {
		return fmt.Errorf("stop module %s/%s: %w", m.service, m.name, err)
	}
	logger.Info("Module stopped.", "force", force)
	return nil
}

// SetSettings replaces the module's settings wholesale.
func (m *Module) SetSettings(settings map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = maps.Clone(settings)
	if m.settings == nil {
		m.settings = map[string]string{}
	}
	return nil
}

func (m *Module) Settings() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.settings)
}
