package store

import (
	"path/filepath"

	"ignetwork/pkg/browser"
	"ignetwork/pkg/logger"
)

// RootListStore keeps the root account's own follower and following lists
// as JSON arrays, one file per list, unique entries in first-seen order.
type RootListStore struct {
	dataDir string
	logger  logger.Logger
}

// NewRootListStore creates a root list store rooted in dataDir.
func NewRootListStore(dataDir string) *RootListStore {
	return &RootListStore{dataDir: dataDir, logger: logger.GetLogger()}
}

func (s *RootListStore) path(kind browser.ListKind) string {
	return filepath.Join(s.dataDir, string(kind)+".json")
}

// Load returns the persisted list for kind. Missing or corrupt files yield
// an empty list.
func (s *RootListStore) Load(kind browser.ListKind) []string {
	var names []string
	if _, err := loadJSON(s.path(kind), &names); err != nil {
		s.logger.WithError(err).WithField("list", string(kind)).Warn("Root list unreadable, starting empty")
		return nil
	}
	return names
}

// Merge appends the names not already present, preserving first-seen order,
// and returns how many were new.
func (s *RootListStore) Merge(kind browser.ListKind, names []string) (int, error) {
	existing := s.Load(kind)
	seen := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		seen[n] = struct{}{}
	}

	added := 0
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		existing = append(existing, n)
		added++
	}

	if added == 0 {
		return 0, nil
	}
	if err := saveJSON(s.path(kind), existing); err != nil {
		return 0, err
	}
	return added, nil
}
