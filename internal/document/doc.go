// Package document holds the immutable, format-agnostic configuration tree the
// configurator walks, together with the loaders that produce it.
//
// A Document is a tree of Nodes: each node has a tag, a set of string
// attributes and an ordered list of child nodes. Attribute values are always
// strings; numeric and boolean interpretation is left to the consumer. Both the
// XML and the HCL front-ends normalize their input into this shape, so the
// engine never sees format-specific details such as character data, comments
// or HCL expressions.
package document
