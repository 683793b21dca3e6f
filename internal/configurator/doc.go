// Package configurator interprets a configuration document against a
// component Server.
//
// ExecConfiguration walks the `baseLibs`, `settings` and `services` sections
// once, creating services and modules through the server, applying their
// settings and firing `onLoad` triggers. ExecAction runs a named entry of the
// `actions` section: a sequence of nested action invocations and start/stop
// calls on services and modules, bounded by a maximum recursion depth.
//
// Any node may carry a `delay` attribute (milliseconds, blocking) which is
// honored before the node's effects. Execution is strictly in document order
// and stops at the first error; side effects already applied are not undone.
package configurator
