// Package print provides the `print` service and module types, which write
// one line per lifecycle event to an io.Writer. They are useful to trace what
// a configuration does without running real components.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/registry"
)

// Plugin implements the registry.Plugin interface for this package.
type Plugin struct {
	// Out receives the lifecycle lines; defaults to os.Stdout.
	Out io.Writer
}

type printer struct {
	mu  *sync.Mutex
	out io.Writer
	id  string
}

// Start prints the component id followed by its settings, sorted by key.
func (p *printer) Start(ctx context.Context, settings map[string]string) error {
	ctxlog.FromContext(ctx).Debug("Printing start.", "component", p.id)

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, settings[k]))
	}
	return p.println("start", p.id, strings.Join(pairs, " "))
}

func (p *printer) Stop(ctx context.Context, force bool) error {
	ctxlog.FromContext(ctx).Debug("Printing stop.", "component", p.id)
	if force {
		return p.println("stop", p.id, "(forced)")
	}
	return p.println("stop", p.id, "")
}

func (p *printer) println(event, id, detail string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := event + " " + id
	if detail != "" {
		line += " " + detail
	}
	_, err := fmt.Fprintln(p.out, line)
	return err
}

// Register registers the service and module types with the registry.
func (m *Plugin) Register(r *registry.Registry) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	mu := &sync.Mutex{}

	r.RegisterServiceType("print", func(name string) (registry.Unit, error) {
		return &printer{mu: mu, out: out, id: name}, nil
	})
	r.RegisterModuleType("print", func(service, name string) (registry.Unit, error) {
		return &printer{mu: mu, out: out, id: service + "/" + name}, nil
	})
}
