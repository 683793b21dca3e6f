package configurator

import (
	"fmt"

	"github.com/vk/configurator/internal/document"
)

// MissingSectionError reports an absent mandatory section (`services`, `actions`).
type MissingSectionError struct {
	Section string
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("missing mandatory section <%s>", e.Section)
}

// ConfigError reports a missing or malformed attribute on a node.
type ConfigError struct {
	Node   string
	Attr   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s: attribute %q %s", e.Node, e.Attr, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RecursionLimitError is returned when nested action invocations exceed the
// configured maximum depth, usually because of an action cycle.
type RecursionLimitError struct {
	ActionID string
	Depth    int
	Limit    int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("action %q: recursion depth %d exceeds limit %d", e.ActionID, e.Depth, e.Limit)
}

// UnsupportedTagError reports a node whose tag is not valid where it appears.
type UnsupportedTagError struct {
	Tag    string
	Parent string
}

func (e *UnsupportedTagError) Error() string {
	return fmt.Sprintf("unsupported tag <%s> inside %s", e.Tag, e.Parent)
}

// UnsupportedMethodError reports an action step method other than start/stop.
type UnsupportedMethodError struct {
	Method string
	Step   string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported method %q on %s", e.Method, e.Step)
}

// ComponentLookupError reports a referenced service or module that does not exist.
type ComponentLookupError struct {
	Service string
	Module  string
	Err     error
}

func (e *ComponentLookupError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("module %s/%s not available: %v", e.Service, e.Module, e.Err)
	}
	return fmt.Sprintf("service %s not available: %v", e.Service, e.Err)
}

func (e *ComponentLookupError) Unwrap() error { return e.Err }

// StateError reports an operation invoked in the wrong lifecycle state.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// ParseError is the loader's error type, re-exported for callers of this package.
type ParseError = document.ParseError
