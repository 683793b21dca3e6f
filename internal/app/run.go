package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vk/configurator/internal/component"
	"github.com/vk/configurator/internal/ctxlog"
)

// Run starts the host, the configurator extension (which loads and applies
// the configuration document) and the optional surfaces: health check
// server, file watcher and command loop. With commands enabled it returns
// once in is exhausted; otherwise it blocks until ctx is cancelled. Either
// way every started component is stopped before it returns.
func (a *App) Run(ctx context.Context, in io.Reader) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.", "config", a.config.ConfigPath)

	a.setStatus(component.Starting)
	a.healthCheckServer()
	a.setStatus(component.Started)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		err = errors.Join(err, a.shutdown(ctx))
	}()

	a.logger.Info("🚀 Starting configurator extension...")
	if err := a.extension.Start(runCtx); err != nil {
		return fmt.Errorf("start configurator: %w", err)
	}
	a.logger.Info("🏁 Configuration applied.")

	if a.config.Watch {
		ready := make(chan error, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.watchConfig(runCtx, ready)
		}()
		if err := <-ready; err != nil {
			return err
		}
	}

	if a.config.Commands {
		return a.serveCommands(runCtx, in)
	}

	<-ctx.Done()
	a.logger.Info("Shutdown requested.")
	return nil
}

// shutdown stops the extension, then every component the registry knows
// about in reverse creation order, then the health check server. It runs on
// a context detached from cancellation so stop work is not cut short.
func (a *App) shutdown(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	a.setStatus(component.Stopping)
	defer a.setStatus(component.Stopped)

	var errs []error
	if a.extension.Status() == component.Started {
		if err := a.extension.Stop(ctx, false); err != nil {
			errs = append(errs, fmt.Errorf("stop configurator: %w", err))
		}
	}
	if err := a.registry.StopAll(ctx, false); err != nil {
		errs = append(errs, fmt.Errorf("stop components: %w", err))
	}
	if err := a.closeHealthCheckServer(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Debug("App.Run method finished.")
	return errors.Join(errs...)
}
