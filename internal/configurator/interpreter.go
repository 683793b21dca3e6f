package configurator

import (
	"context"
	"fmt"

	"github.com/vk/configurator/internal/component"
	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/document"
)

// apply walks the document once: root base libraries, root settings, then the
// services section. Document order is execution order at every level.
//
// Nothing is rolled back on failure; components created before the failing
// node stay registered.
func (e *engine) apply(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	root := e.doc.Root
	logger.Debug("Applying configuration.", "path", e.doc.Path)

	if err := e.addLibraries(ctx, root.ChildrenByTag("baseLibs"), e.server.AddLibrary); err != nil {
		return err
	}

	for _, settings := range root.ChildrenByTag("settings") {
		pairs, err := settingPairs(settings)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			e.server.SetSetting(p.key, p.val)
			logger.Debug("Server setting applied.", "key", p.key)
		}
	}

	services := root.Child("services")
	if services == nil {
		return &MissingSectionError{Section: "services"}
	}
	return e.applyServices(ctx, services)
}

func (e *engine) applyServices(ctx context.Context, services *document.Node) error {
	if err := e.delay(ctx, services); err != nil {
		return err
	}

	var list []*document.Node
	for _, c := range services.Children {
		switch c.Tag {
		case "baseLibs":
		case "service":
			list = append(list, c)
		default:
			return &UnsupportedTagError{Tag: c.Tag, Parent: services.String()}
		}
	}

	if err := e.addLibraries(ctx, services.ChildrenByTag("baseLibs"), e.server.AddLibrary); err != nil {
		return err
	}

	for _, svc := range list {
		if err := e.applyService(ctx, svc); err != nil {
			return err
		}
	}

	return e.onLoad(ctx, services)
}

func (e *engine) applyService(ctx context.Context, n *document.Node) error {
	if err := e.delay(ctx, n); err != nil {
		return err
	}
	name, err := requireAttr(n, "name")
	if err != nil {
		return err
	}
	typ, err := requireAttr(n, "type")
	if err != nil {
		return err
	}
	for _, c := range n.Children {
		switch c.Tag {
		case "baseLibs", "settings", "modules":
		default:
			return &UnsupportedTagError{Tag: c.Tag, Parent: n.String()}
		}
	}

	svc, err := e.server.CreateService(ctx, typ, name)
	if err != nil {
		return fmt.Errorf("create service %q of type %q: %w", name, typ, err)
	}
	ctx = ctxlog.With(ctx, "service", name)

	if err := e.addLibraries(ctx, n.ChildrenByTag("baseLibs"), svc.AddLibrary); err != nil {
		return err
	}

	for _, settings := range n.ChildrenByTag("settings") {
		pairs, err := settingPairs(settings)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			svc.SetSetting(p.key, p.val)
		}
	}

	for _, modules := range n.ChildrenByTag("modules") {
		if err := e.applyModules(ctx, svc, modules); err != nil {
			return err
		}
	}

	return e.onLoad(ctx, n)
}

func (e *engine) applyModules(ctx context.Context, svc component.Service, modules *document.Node) error {
	if err := e.delay(ctx, modules); err != nil {
		return err
	}
	for _, m := range modules.Children {
		if m.Tag != "module" {
			return &UnsupportedTagError{Tag: m.Tag, Parent: modules.String()}
		}
		if err := e.applyModule(ctx, svc, m); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) applyModule(ctx context.Context, svc component.Service, n *document.Node) error {
	if err := e.delay(ctx, n); err != nil {
		return err
	}
	name, err := requireAttr(n, "name")
	if err != nil {
		return err
	}
	typ, err := requireAttr(n, "type")
	if err != nil {
		return err
	}

	// All settings blocks of a module are merged and handed over in one call.
	var batch map[string]string
	for _, c := range n.Children {
		if c.Tag != "settings" {
			return &UnsupportedTagError{Tag: c.Tag, Parent: n.String()}
		}
		pairs, err := settingPairs(c)
		if err != nil {
			return err
		}
		if batch == nil {
			batch = make(map[string]string, len(pairs))
		}
		for _, p := range pairs {
			batch[p.key] = p.val
		}
	}

	mod, err := svc.CreateModule(ctx, typ, name)
	if err != nil {
		return fmt.Errorf("create module %q of type %q: %w", name, typ, err)
	}
	if batch != nil {
		if err := mod.SetSettings(batch); err != nil {
			return fmt.Errorf("module %q settings: %w", name, err)
		}
	}

	return e.onLoad(ctx, n)
}

type setting struct {
	key, val string
}

// settingPairs reads the `setting` children of a `settings` node in order.
func settingPairs(settings *document.Node) ([]setting, error) {
	pairs := make([]setting, 0, len(settings.Children))
	for _, s := range settings.Children {
		if s.Tag != "setting" {
			return nil, &UnsupportedTagError{Tag: s.Tag, Parent: settings.String()}
		}
		key, err := requireAttr(s, "key")
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, setting{key: key, val: s.AttrOr("val", "")})
	}
	return pairs, nil
}
