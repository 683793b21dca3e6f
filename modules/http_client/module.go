// Package http_client provides the `http_client` module type: a pooled HTTP
// client that lives while the module is started. When a probe URL is set,
// start fails unless the endpoint answers without an error status, which
// lets a configuration gate later actions on an upstream being reachable.
//
// Settings:
//
//	timeout       request timeout as a Go duration (default 30s)
//	probe_url     optional URL requested on start
//	probe_method  method for the probe (default GET)
package http_client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/registry"
	"github.com/vk/configurator/internal/settings"
)

const defaultTimeout = 30 * time.Second

// Plugin implements the registry.Plugin interface for this package.
type Plugin struct{}

// Input declares the module settings.
type Input struct {
	Timeout     string `cty:"timeout"`
	ProbeURL    string `cty:"probe_url"`
	ProbeMethod string `cty:"probe_method"`
}

type config struct {
	Timeout     time.Duration
	ProbeURL    string
	ProbeMethod string
}

func parseConfig(raw map[string]string) (*config, error) {
	in := &Input{Timeout: defaultTimeout.String(), ProbeMethod: http.MethodGet}
	if err := settings.Decode(raw, in); err != nil {
		return nil, err
	}
	timeout, err := time.ParseDuration(in.Timeout)
	if err != nil {
		return nil, fmt.Errorf("setting 'timeout': %w", err)
	}
	cfg := &config{
		Timeout:     timeout,
		ProbeURL:    in.ProbeURL,
		ProbeMethod: strings.ToUpper(in.ProbeMethod),
	}
	if cfg.ProbeMethod == "" {
		cfg.ProbeMethod = http.MethodGet
	}
	return cfg, nil
}

type client struct {
	id string

	mu     sync.Mutex
	client *http.Client
}

// newHTTPClient returns a live *http.Client with its own connection pool.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (c *client) Start(ctx context.Context, raw map[string]string) error {
	cfg, err := parseConfig(raw)
	if err != nil {
		return err
	}
	hc := newHTTPClient(cfg.Timeout)

	if cfg.ProbeURL != "" {
		if err := probe(ctx, hc, cfg); err != nil {
			hc.CloseIdleConnections()
			return err
		}
	}

	c.mu.Lock()
	c.client = hc
	c.mu.Unlock()
	return nil
}

func probe(ctx context.Context, hc *http.Client, cfg *config) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Making HTTP request", "method", cfg.ProbeMethod, "url", cfg.ProbeURL)

	req, err := http.NewRequestWithContext(ctx, cfg.ProbeMethod, cfg.ProbeURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Info("Received HTTP response", "status", resp.Status)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("probe %s %s: unexpected status %s", cfg.ProbeMethod, cfg.ProbeURL, resp.Status)
	}
	return nil
}

// Stop gracefully closes any idle connections.
func (c *client) Stop(ctx context.Context, _ bool) error {
	c.mu.Lock()
	hc := c.client
	c.client = nil
	c.mu.Unlock()
	if hc != nil {
		hc.CloseIdleConnections()
		ctxlog.FromContext(ctx).Debug("HTTP client closed.", "module", c.id)
	}
	return nil
}

// Register registers the module type with the registry.
func (m *Plugin) Register(r *registry.Registry) {
	r.RegisterModuleType("http_client", func(service, name string) (registry.Unit, error) {
		return &client{id: service + "/" + name}, nil
	})
}
