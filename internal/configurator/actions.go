package configurator

import (
	"context"
	"fmt"

	"github.com/vk/configurator/internal/component"
	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/document"
)

// run executes the first action whose id matches. An unknown id is a no-op.
// depth counts nested invocations within one top-level call and starts at 1.
func (e *engine) run(ctx context.Context, id string, depth int) error {
	logger := ctxlog.FromContext(ctx)

	actions := e.doc.Root.Child("actions")
	if actions == nil {
		return &MissingSectionError{Section: "actions"}
	}

	var action *document.Node
	for _, c := range actions.Children {
		if v, _ := c.Attr("id"); c.Tag == "action" && v == id {
			action = c
			break
		}
	}
	if action == nil {
		logger.Debug("No action with this id, nothing to do.", "action", id)
		return nil
	}

	if depth > e.maxRecursion {
		return &RecursionLimitError{ActionID: id, Depth: depth, Limit: e.maxRecursion}
	}

	if err := e.delay(ctx, actions); err != nil {
		return err
	}
	if err := e.delay(ctx, action); err != nil {
		return err
	}

	logger.Info("Executing action.", "action", id, "depth", depth, "steps", len(action.Children))
	for _, step := range action.Children {
		if err := e.delay(ctx, step); err != nil {
			return err
		}
		if err := e.step(ctx, action, step, depth); err != nil {
			return fmt.Errorf("action %q: %w", id, err)
		}
	}
	return nil
}

func (e *engine) step(ctx context.Context, action, step *document.Node, depth int) error {
	switch step.Tag {
	case "action":
		target, err := requireAttr(step, "id")
		if err != nil {
			return err
		}
		return e.run(ctx, target, depth+1)

	case "service":
		method, force, err := stepMethod(step)
		if err != nil {
			return err
		}
		serviceName, err := requireAttr(step, "serviceName")
		if err != nil {
			return err
		}
		svc, err := e.server.Service(serviceName)
		if err != nil {
			return &ComponentLookupError{Service: serviceName, Err: err}
		}
		return invoke(ctx, svc, method, force)

	case "module":
		method, force, err := stepMethod(step)
		if err != nil {
			return err
		}
		serviceName, err := requireAttr(step, "serviceName")
		if err != nil {
			return err
		}
		moduleName, err := requireAttr(step, "moduleName")
		if err != nil {
			return err
		}
		svc, err := e.server.Service(serviceName)
		if err != nil {
			return &ComponentLookupError{Service: serviceName, Module: moduleName, Err: err}
		}
		mod, err := svc.Module(moduleName)
		if err != nil {
			return &ComponentLookupError{Service: serviceName, Module: moduleName, Err: err}
		}
		return invoke(ctx, mod, method, force)

	default:
		return &UnsupportedTagError{Tag: step.Tag, Parent: action.String()}
	}
}

// stepMethod validates the `method` attribute; `force` only counts for stop
// and only the literal "true" enables it.
func stepMethod(step *document.Node) (method string, force bool, err error) {
	method = step.AttrOr("method", "")
	switch method {
	case "start":
		return method, false, nil
	case "stop":
		return method, step.AttrOr("force", "") == "true", nil
	default:
		return "", false, &UnsupportedMethodError{Method: method, Step: step.String()}
	}
}

func invoke(ctx context.Context, target component.Lifecycle, method string, force bool) error {
	if method == "start" {
		return target.Start(ctx)
	}
	return target.Stop(ctx, force)
}
