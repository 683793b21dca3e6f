package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vk/configurator/internal/ctxlog"
)

// serveCommands reads one command per line from in and forwards it to the
// extension. Every non-blank line gets exactly one reply on the app output:
// "ok" or "error: <message>". It returns when in is exhausted or ctx is
// cancelled, whichever comes first.
func (a *App) serveCommands(ctx context.Context, in io.Reader) error {
	logger := ctxlog.FromContext(ctx)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read commands: %w", err)
				}
				return nil
			}
			line := strings.TrimSpace(raw)
			if line == "" {
				continue
			}
			logger.Debug("Command received.", "command", line)
			if err := a.extension.SendCommand(ctx, line); err != nil {
				logger.Warn("Command failed.", "command", line, "error", err)
				fmt.Fprintf(a.outW, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(a.outW, "ok")
		}
	}
}
