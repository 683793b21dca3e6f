// Package registry is the host-side component registry the configurator
// drives.
//
// The Registry maps the string type names used in configuration documents
// (e.g. `type="print"`) to Go factory closures registered by plugins, and
// owns every live Service and Module instance created from them. It also
// keeps the process-wide settings and base library list.
//
// Plugins register their types once at startup; registering the same type
// name twice is a programmer error and panics. Everything that depends on a
// configuration document (unknown types, duplicate instance names, missing
// instances, invalid lifecycle transitions) is reported as an error wrapping
// one of the package's sentinel errors.
package registry
