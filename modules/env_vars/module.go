// Package env_vars provides the `env_vars` module type. On start it exports
// the module's settings as process environment variables; on stop it puts
// back whatever was there before.
package env_vars

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/registry"
)

// Plugin implements the registry.Plugin interface for this package.
type Plugin struct{}

type previous struct {
	val string
	set bool
}

type exporter struct {
	id string

	mu    sync.Mutex
	saved map[string]previous
}

func (e *exporter) Start(ctx context.Context, settings map[string]string) error {
	logger := ctxlog.FromContext(ctx).With("module", e.id)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.saved = make(map[string]previous, len(settings))
	for k, v := range settings {
		old, ok := os.LookupEnv(k)
		e.saved[k] = previous{val: old, set: ok}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("export %s: %w", k, err)
		}
		logger.Debug("Environment variable exported.", "key", k)
	}
	return nil
}

func (e *exporter) Stop(ctx context.Context, _ bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for k, p := range e.saved {
		var err error
		if p.set {
			err = os.Setenv(k, p.val)
		} else {
			err = os.Unsetenv(k)
		}
		if err != nil {
			return fmt.Errorf("restore %s: %w", k, err)
		}
	}
	ctxlog.FromContext(ctx).Debug("Environment restored.", "module", e.id, "keys", len(e.saved))
	e.saved = nil
	return nil
}

// Register registers the module type with the registry.
func (m *Plugin) Register(r *registry.Registry) {
	r.RegisterModuleType("env_vars", func(service, name string) (registry.Unit, error) {
		return &exporter{id: service + "/" + name}, nil
	})
}
