package server

import (
	"fmt"
	"os"
	"path/filepath"

	ps "github.com/mitchellh/go-ps"
)

// anotherInstanceRunning reports whether a second process with this
// executable's name is alive. Two controllers sharing a state file
// would race on persistence.
func anotherInstanceRunning() (bool, error) {
	executable, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("resolve executable: %w", err)
	}

	name := filepath.Base(executable)
	selfPID := os.Getpid()

	processes, err := ps.Processes()
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processes {
		if process.Pid() == selfPID {
			continue
		}

		if process.Executable() == name {
			return true, nil
		}
	}

	return false, nil
}
