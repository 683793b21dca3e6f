package configurator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/document"
)

// coreLibDir is the directory, relative to the working directory, that plain
// base library paths are resolved against.
const coreLibDir = "core"

// resolveLibrary maps a `baseLib` path to a file system path. `file:` URLs are
// used as given; anything else is taken relative to the core library directory,
// with either slash style accepted as separator.
func resolveLibrary(coreDir, path string) string {
	if strings.HasPrefix(path, "file:") {
		if u, err := url.Parse(path); err == nil {
			if u.Opaque != "" {
				return filepath.FromSlash(u.Opaque)
			}
			return filepath.FromSlash(u.Path)
		}
		return strings.TrimPrefix(path, "file:")
	}
	normalized := strings.ReplaceAll(path, `\`, "/")
	return filepath.Join(coreDir, filepath.FromSlash(normalized))
}

// addLibraries registers every `baseLib` under the given `baseLibs` nodes. A
// library missing on disk is only a warning; it is still registered.
func (e *engine) addLibraries(ctx context.Context, groups []*document.Node, add func(string) error) error {
	logger := ctxlog.FromContext(ctx)
	for _, group := range groups {
		for _, lib := range group.Children {
			if lib.Tag != "baseLib" {
				return &UnsupportedTagError{Tag: lib.Tag, Parent: group.String()}
			}
			path := lib.AttrOr("path", "")
			if path == "" {
				continue
			}

			resolved := resolveLibrary(e.coreDir, path)
			if _, err := os.Stat(resolved); errors.Is(err, fs.ErrNotExist) {
				logger.Warn("Base library not found.", "path", path, "resolved", resolved)
			}
			if err := add(resolved); err != nil {
				return fmt.Errorf("register base library %s: %w", resolved, err)
			}
			logger.Debug("Base library registered.", "path", resolved)
		}
	}
	return nil
}
