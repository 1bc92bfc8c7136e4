//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/quorumgate/breaker/internal/domain/threat"
)

// DetectActor gathers host and user information for authorization
// and the audit trail.
func DetectActor() (*threat.Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &threat.Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
