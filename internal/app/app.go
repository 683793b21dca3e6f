package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/configurator/internal/component"
	"github.com/vk/configurator/internal/configurator"
	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/extension"
	"github.com/vk/configurator/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW         io.Writer
	logger       *slog.Logger
	config       *Config
	registry     *registry.Registry
	configurator *configurator.Configurator
	extension    *extension.Extension

	ctx        context.Context
	httpServer *http.Server

	mu     sync.Mutex
	status component.Status
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App with its own logger and registry. When no plugins are
// given the core modules are registered.
func NewApp(outW io.Writer, cfg *Config, plugins ...registry.Plugin) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(plugins) == 0 {
		plugins = coreModules(outW)
	}
	for _, p := range plugins {
		p.Register(reg)
	}
	logger.Debug("Component types registered.", "plugins", len(plugins))

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		ctx:      ctxlog.WithLogger(context.Background(), logger),
	}
	a.configurator = configurator.New(reg, configurator.Options{
		MaxRecursion: cfg.MaxRecursion,
		WorkingDir:   cfg.WorkingDir,
	})
	a.extension = extension.New(a, a.configurator, cfg.ConfigPath)
	return a
}

// Status reports the host lifecycle state; the extension only starts on a
// started host.
func (a *App) Status() component.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *App) setStatus(s component.Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Configurator returns the application's configurator.
func (a *App) Configurator() *configurator.Configurator {
	return a.configurator
}

// Extension returns the configurator extension.
func (a *App) Extension() *extension.Extension {
	return a.extension
}
