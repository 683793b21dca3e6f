// Package component defines the contract between the configurator and the
// component registry it drives: the process-wide Server, the Service and
// Module handles it creates, and the lifecycle Status they share.
package component

import "context"

// Status is the coarse lifecycle state shared by services, modules, the
// configurator extension and the host process.
type Status int

const (
	Stopped Status = iota
	Starting
	Started
	Stopping
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Started:
		return "started"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Lifecycle is implemented by anything that can be started and stopped.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context, force bool) error
}

// Module is a live module instance owned by a service.
type Module interface {
	Lifecycle
	// SetSettings replaces the module's settings with the given batch.
	SetSettings(settings map[string]string) error
}

// Service is a live service instance.
type Service interface {
	Lifecycle
	CreateModule(ctx context.Context, moduleType, name string) (Module, error)
	Module(name string) (Module, error)
	SetSetting(key, val string)
	AddLibrary(path string) error
}

// Server is the process-wide registry the configurator creates components in.
type Server interface {
	CreateService(ctx context.Context, serviceType, name string) (Service, error)
	Service(name string) (Service, error)
	SetSetting(key, val string)
	AddLibrary(path string) error
}
