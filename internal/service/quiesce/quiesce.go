// Package quiesce runs the local command an agent executes when its
// module must stop serving, such as draining a request queue or
// flipping a maintenance flag.
package quiesce

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrNoCommand indicates no quiesce command is configured.
var ErrNoCommand = errors.New("no quiesce command configured")

// Run starts the configured command asynchronously; the process
// takes over the rest. The first argument is the executable.
func Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return ErrNoCommand
	}

	if err := exec.CommandContext(ctx, argv[0], argv[1:]...).Start(); err != nil {
		return fmt.Errorf("start quiesce command %q: %w", argv[0], err)
	}

	return nil
}
