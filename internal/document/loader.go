package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/configurator/internal/ctxlog"
)

// ParseError reports a configuration file that could not be read or parsed.
// No partial document is ever returned alongside it.
type ParseError struct {
	Path string
	Err  error
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse configuration %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Loader turns a file on disk into a Document.
type Loader interface {
	Load(ctx context.Context, path string) (*Document, error)
}

// FileLoader picks a parser from the file extension: `.hcl` files go through
// the HCL front-end, everything else is treated as XML.
type FileLoader struct{}

// NewLoader creates a new extension-dispatching loader.
func NewLoader() *FileLoader {
	return &FileLoader{}
}

// Load reads and parses the file at path.
func (l *FileLoader) Load(ctx context.Context, path string) (*Document, error) {
	logger := ctxlog.FromContext(ctx)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var root *Node
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		logger.Debug("Parsing HCL configuration.", "path", path, "bytes", len(src))
		root, err = ParseHCL(src, path)
	default:
		logger.Debug("Parsing XML configuration.", "path", path, "bytes", len(src))
		root, err = ParseXML(src)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	logger.Debug("Configuration parsed.", "path", path, "root", root.Tag, "children", len(root.Children))
	return &Document{Path: path, Root: root}, nil
}
