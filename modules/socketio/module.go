// Package socketio provides the `socketio_client` module type: a persistent
// socket.io connection opened when the module starts and closed when it stops.
//
// Settings:
//
//	url                  server URL including the socket.io path (required)
//	namespace            namespace to join (default "/")
//	insecure_skip_verify "true" disables TLS verification
//	timeout              connect timeout as a Go duration (default 15s)
//	emit_event           optional event emitted once connected
//	emit_data            payload for emit_event
package socketio

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/registry"
	"github.com/vk/configurator/internal/settings"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const defaultTimeout = 15 * time.Second

// Plugin implements the registry.Plugin interface for this package.
type Plugin struct{}

// Input declares the module settings.
type Input struct {
	URL                string `cty:"url"`
	Namespace          string `cty:"namespace"`
	InsecureSkipVerify bool   `cty:"insecure_skip_verify"`
	Timeout            string `cty:"timeout"`
	EmitEvent          string `cty:"emit_event"`
	EmitData           string `cty:"emit_data"`
}

// parseInput decodes the settings over the defaults and returns them with
// the parsed connect timeout.
func parseInput(raw map[string]string) (*Input, time.Duration, error) {
	in := &Input{Namespace: "/", Timeout: defaultTimeout.String()}
	if err := settings.Decode(raw, in); err != nil {
		return nil, 0, err
	}
	if in.URL == "" {
		return nil, 0, errors.New("setting 'url' is required")
	}
	if in.Namespace == "" {
		in.Namespace = "/"
	}
	timeout, err := time.ParseDuration(in.Timeout)
	if err != nil {
		return nil, 0, fmt.Errorf("setting 'timeout': %w", err)
	}
	return in, timeout, nil
}

// offer hands the connection outcome to Start without blocking. Only the
// first outcome is read, and none once Start has given up, so later events
// must not stall the client's event goroutine.
func offer(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

type client struct {
	id string

	mu sync.Mutex
	io *socket.Socket
}

// Start connects and waits until the connection is established, fails, or
// the configured timeout elapses.
func (c *client) Start(ctx context.Context, raw map[string]string) error {
	cfg, timeout, err := parseInput(raw)
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx).With("module", c.id, "url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connected := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		offer(connected, nil)
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				offer(connected, err)
				return
			}
		}
		offer(connected, errors.New("connect_error"))
	})

	logger.Debug("Connecting socket.io client.")
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
	logger.Info("Socket.io client connected.", "sid", io.Id())

	if cfg.EmitEvent != "" {
		logger.Info("Emitting event", "event", cfg.EmitEvent)
		io.Emit(cfg.EmitEvent, cfg.EmitData)
	}

	c.mu.Lock()
	c.io = io
	c.mu.Unlock()
	return nil
}

// Stop disconnects the client.
func (c *client) Stop(ctx context.Context, _ bool) error {
	c.mu.Lock()
	io := c.io
	c.io = nil
	c.mu.Unlock()
	if io == nil {
		return nil
	}
	ctxlog.FromContext(ctx).Info("Disconnecting socket.io client.", "module", c.id, "sid", io.Id())
	io.Disconnect()
	return nil
}

// Register registers the module type with the registry.
func (m *Plugin) Register(r *registry.Registry) {
	r.RegisterModuleType("socketio_client", func(service, name string) (registry.Unit, error) {
		return &client{id: service + "/" + name}, nil
	})
}
