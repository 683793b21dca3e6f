package configurator

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/vk/configurator/internal/component"
	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/document"
)

// DefaultMaxRecursion bounds nested action invocations when no limit is configured.
const DefaultMaxRecursion = 15

// Options tune a Configurator. The zero value is usable.
type Options struct {
	// MaxRecursion is the deepest allowed nested action invocation.
	MaxRecursion int
	// WorkingDir is where relative base libraries are looked up, under `core/`.
	WorkingDir string
	// Loader parses configuration files; defaults to document.NewLoader().
	Loader document.Loader
	// Sleep implements `delay`; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Configurator loads a configuration document and drives a component Server
// from it. Every exported operation holds one lock for its full duration,
// including delays and triggered actions, so at most one load or execution
// is ever in flight.
type Configurator struct {
	mu sync.Mutex

	server  component.Server
	loader  document.Loader
	sleep   func(time.Duration)
	coreDir string

	maxRecursion int
	path         string
	doc          *document.Document
}

// New creates a Configurator driving server.
func New(server component.Server, opts Options) *Configurator {
	if opts.MaxRecursion <= 0 {
		opts.MaxRecursion = DefaultMaxRecursion
	}
	if opts.Loader == nil {
		opts.Loader = document.NewLoader()
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Configurator{
		server:       server,
		loader:       opts.Loader,
		sleep:        opts.Sleep,
		coreDir:      filepath.Join(opts.WorkingDir, coreLibDir),
		maxRecursion: opts.MaxRecursion,
	}
}

// SetMaxRecursion changes the action recursion bound for subsequent executions.
func (c *Configurator) SetMaxRecursion(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxRecursion = n
}

func (c *Configurator) MaxRecursion() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxRecursion
}

// Document returns the currently loaded document, or nil.
func (c *Configurator) Document() *document.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// SourcePath returns the path of the currently loaded document.
func (c *Configurator) SourcePath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// LoadFromFile parses path and, on success, makes it the current document and
// the source for later reloads. A failed load leaves the previous state intact.
func (c *Configurator) LoadFromFile(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx, path)
}

// ReloadConfiguration re-parses the current source path. The previous
// document stays in place if parsing fails.
func (c *Configurator) ReloadConfiguration(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		return &StateError{Op: "reloadConfiguration", Reason: "no configuration file loaded"}
	}
	return c.load(ctx, c.path)
}

func (c *Configurator) load(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)
	doc, err := c.loader.Load(ctx, path)
	if err != nil {
		logger.Error("Configuration load failed, keeping previous document.", "path", path, "error", err)
		return err
	}
	c.path = path
	c.doc = doc
	logger.Info("Configuration loaded.", "path", path)
	return nil
}

// ExecConfiguration creates and configures every component the document declares.
func (c *Configurator) ExecConfiguration(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.engine("execConfiguration")
	if err != nil {
		return err
	}
	return e.apply(ctx)
}

// ExecAction runs the named action with a fresh recursion budget.
func (c *Configurator) ExecAction(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.engine("execAction")
	if err != nil {
		return err
	}
	return e.run(ctx, id, 1)
}

// engine snapshots the state one execution needs. Callers hold c.mu.
func (c *Configurator) engine(op string) (*engine, error) {
	if c.doc == nil {
		return nil, &StateError{Op: op, Reason: "configuration not loaded"}
	}
	return &engine{
		server:       c.server,
		doc:          c.doc,
		maxRecursion: c.maxRecursion,
		sleep:        c.sleep,
		coreDir:      c.coreDir,
	}, nil
}

// engine is a single execution over one document. It is not safe for
// concurrent use; the Configurator lock serializes all engines.
type engine struct {
	server       component.Server
	doc          *document.Document
	maxRecursion int
	sleep        func(time.Duration)
	coreDir      string
}
