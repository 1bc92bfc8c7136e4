package roles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/logger"
)

// Store answers role-membership questions from a YAML file mapping role
// names to account lists.
//
// Until a first successful load the store reports itself unavailable, which
// blocks every role-gated operation; it never falls through to allow.
type Store struct {
	// path is the filesystem location of the roles YAML file.
	path string

	mu     sync.RWMutex
	byRole map[string]map[string]bool
	loaded bool
}

// NewStore creates a store reading from the provided path.
func NewStore(path string) *Store {
	return &Store{
		path: filepath.Clean(path),
	}
}

// Load reads and replaces the role assignments from disk.
func (s *Store) Load(_ context.Context) error {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read roles file: %w", err)
	}

	var assignments map[string][]string
	if err = yaml.Unmarshal(contents, &assignments); err != nil {
		return fmt.Errorf("unmarshal roles file: %w", err)
	}

	byRole := make(map[string]map[string]bool, len(assignments))

	for role, accounts := range assignments {
		members := make(map[string]bool, len(accounts))
		for _, account := range accounts {
			members[account] = true
		}

		byRole[role] = members
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byRole = byRole
	s.loaded = true

	return nil
}

// HasRole reports whether the account holds the role.
// It returns an error while no role file has been loaded; the caller must
// treat that as a denial, not as an allow.
func (s *Store) HasRole(_ context.Context, role, account string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return false, threat.ErrRoleStoreUnavailable
	}

	return s.byRole[role][account], nil
}

// Watch reloads the role file whenever it changes, until the context is done.
// Editors and config management tools typically replace the file, so the
// parent directory is watched and events are filtered by name.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err = watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()

		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	go func() {
		defer func() {
			_ = watcher.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) != s.path {
					continue
				}

				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				if err := s.Load(ctx); err != nil {
					// Keep answering from the last good snapshot.
					logger.Errorf(ctx, "Failed to reload roles file: %v", err)

					continue
				}

				logger.InfoKV(ctx, "Roles file reloaded", "path", s.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.Errorf(ctx, "Roles watcher error: %v", err)
			}
		}
	}()

	return nil
}
