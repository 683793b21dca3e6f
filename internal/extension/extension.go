// Package extension wraps a Configurator in the host's extension lifecycle:
// it loads and applies the configuration on start and exposes a textual
// command channel while started.
package extension

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vk/configurator/internal/component"
	"github.com/vk/configurator/internal/configurator"
	"github.com/vk/configurator/internal/ctxlog"
)

// TypeName is the extension type reported to the host.
const TypeName = "Configurator"

// Host is the part of the host process the extension depends on.
type Host interface {
	Status() component.Status
}

// Engine is the configurator surface the extension drives.
type Engine interface {
	LoadFromFile(ctx context.Context, path string) error
	ExecConfiguration(ctx context.Context) error
	ExecAction(ctx context.Context, id string) error
}

var _ Engine = (*configurator.Configurator)(nil)

// UnsupportedOperationError reports a command the channel does not understand.
type UnsupportedOperationError struct {
	Command string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported command %q", e.Command)
}

// Extension is the Stopped -> Starting -> Started -> Stopping state machine
// around one configuration file.
type Extension struct {
	host   Host
	engine Engine
	path   string

	mu     sync.Mutex
	status component.Status
}

// New creates a stopped extension that will load the configuration at path.
func New(host Host, engine Engine, path string) *Extension {
	return &Extension{host: host, engine: engine, path: path}
}

func (x *Extension) Type() string { return TypeName }

func (x *Extension) Status() component.Status {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.status
}

func (x *Extension) setStatus(s component.Status) {
	x.mu.Lock()
	x.status = s
	x.mu.Unlock()
}

// Start loads the configuration file and applies it. Any failure returns the
// extension to Stopped; a half-configured Started state is never exposed.
func (x *Extension) Start(ctx context.Context) error {
	x.mu.Lock()
	if x.status != component.Stopped {
		x.mu.Unlock()
		return &configurator.StateError{Op: "start", Reason: "extension is not stopped"}
	}
	if hs := x.host.Status(); hs != component.Started {
		x.mu.Unlock()
		return &configurator.StateError{Op: "start", Reason: "host is " + hs.String()}
	}
	x.status = component.Starting
	x.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting configurator extension.", "config", x.path)

	if err := x.engine.LoadFromFile(ctx, x.path); err != nil {
		x.setStatus(component.Stopped)
		return err
	}
	if err := x.engine.ExecConfiguration(ctx); err != nil {
		x.setStatus(component.Stopped)
		return err
	}

	x.setStatus(component.Started)
	logger.Info("Configurator extension started.")
	return nil
}

// Stop only transitions the state: components created by the configuration
// stay as they are.
func (x *Extension) Stop(ctx context.Context, force bool) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.status == component.Stopped {
		return &configurator.StateError{Op: "stop", Reason: "extension is already stopped"}
	}
	x.status = component.Stopping
	ctxlog.FromContext(ctx).Info("Configurator extension stopped.", "force", force)
	x.status = component.Stopped
	return nil
}

// SendCommand dispatches one line of the command channel:
//
//	execAction <id>
//	execConfiguration
func (x *Extension) SendCommand(ctx context.Context, command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return &UnsupportedOperationError{Command: command}
	}

	switch {
	case fields[0] == "execAction" && len(fields) == 2:
		if err := x.requireStarted(fields[0]); err != nil {
			return err
		}
		return x.engine.ExecAction(ctx, fields[1])
	case fields[0] == "execConfiguration" && len(fields) == 1:
		if err := x.requireStarted(fields[0]); err != nil {
			return err
		}
		return x.engine.ExecConfiguration(ctx)
	default:
		return &UnsupportedOperationError{Command: command}
	}
}

func (x *Extension) requireStarted(op string) error {
	if s := x.Status(); s != component.Started {
		return &configurator.StateError{Op: op, Reason: "extension is " + s.String()}
	}
	return nil
}
