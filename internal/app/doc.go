// Package app is the host process: it owns the component registry, the
// configurator extension and the process-level surfaces around them (logger,
// health check server, configuration file watcher and command loop),
// decoupled from any specific entrypoint like a CLI.
package app
