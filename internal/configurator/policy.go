package configurator

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/document"
)

// delay blocks the walk for the node's `delay` attribute, in milliseconds.
// The wait ignores ctx cancellation: a walk runs to completion or to its
// first error.
func (e *engine) delay(ctx context.Context, n *document.Node) error {
	raw, ok := n.Attr("delay")
	if !ok {
		return nil
	}
	ms, err := strconv.ParseInt(raw, 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		return &ConfigError{Node: n.String(), Attr: "delay", Reason: "out of range", Err: err}
	}
	if err != nil {
		return &ConfigError{Node: n.String(), Attr: "delay", Reason: "must be an integer number of milliseconds", Err: err}
	}
	if ms < 0 {
		return &ConfigError{Node: n.String(), Attr: "delay", Reason: "must not be negative"}
	}

	ctxlog.FromContext(ctx).Debug("Delaying node.", "node", n.String(), "ms", ms)
	e.sleep(time.Duration(ms) * time.Millisecond)
	return nil
}

// onLoad runs the action named by the node's `onLoad` attribute with a fresh
// recursion budget, after the node's own effects have been applied.
func (e *engine) onLoad(ctx context.Context, n *document.Node) error {
	id, ok := n.Attr("onLoad")
	if !ok {
		return nil
	}
	ctxlog.FromContext(ctx).Info("Running onLoad action.", "node", n.String(), "action", id)
	return e.run(ctx, id, 1)
}

// requireAttr returns a mandatory, non-empty attribute.
func requireAttr(n *document.Node, name string) (string, error) {
	v, ok := n.Attr(name)
	if !ok || v == "" {
		return "", &ConfigError{Node: n.String(), Attr: name, Reason: "is required"}
	}
	return v, nil
}
