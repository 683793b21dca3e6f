// Package basic provides the `basic` service type: a service with no
// behavior of its own that exists to group modules and carry settings.
package basic

import "github.com/vk/configurator/internal/registry"

// Plugin implements the registry.Plugin interface for this package.
type Plugin struct{}

// Register registers the service type with the registry.
func (Plugin) Register(r *registry.Registry) {
	r.RegisterServiceType("basic", func(string) (registry.Unit, error) {
		return registry.NopUnit{}, nil
	})
}
