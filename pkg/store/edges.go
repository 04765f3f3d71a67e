package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"ignetwork/pkg/logger"
)

// EdgeFileName is the adjacency list shared with external graph tooling.
const EdgeFileName = "adjList.txt"

// Edge is a directed follow relationship: Source follows Target.
type Edge struct {
	Source string
	Target string
}

func (e Edge) valid() bool {
	return e.Source != "" && e.Target != ""
}

func (e Edge) line() string {
	return e.Source + " " + e.Target
}

// EdgeStore owns the edge file. Merges are unions over the set of lines, so
// repeating a merge changes nothing and the file never shrinks. Writes take
// a file lock because other tools read the same file.
type EdgeStore struct {
	path   string
	lock   *flock.Flock
	logger logger.Logger
}

// NewEdgeStore creates an edge store rooted in dataDir.
func NewEdgeStore(dataDir string) *EdgeStore {
	path := filepath.Join(dataDir, EdgeFileName)
	return &EdgeStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.GetLogger(),
	}
}

// Merge unions the given edges into the file and returns how many were new.
// Self-loops are kept; edges with an empty endpoint are dropped.
func (s *EdgeStore) Merge(ctx context.Context, edges []Edge) (int, error) {
	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return 0, fmt.Errorf("failed to lock edge file: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("edge file lock unavailable")
	}
	defer s.lock.Unlock()

	seen, order, err := s.readLines()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, e := range edges {
		if !e.valid() {
			continue
		}
		line := e.line()
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		order = append(order, line)
		added++
	}

	if added == 0 {
		return 0, nil
	}

	if err := s.writeLines(order); err != nil {
		return 0, err
	}

	s.logger.DebugWithFields("Edges merged", map[string]interface{}{
		"added": added,
		"total": len(order),
	})

	return added, nil
}

// Load returns every well-formed edge in file order.
func (s *EdgeStore) Load() ([]Edge, error) {
	_, order, err := s.readLines()
	if err != nil {
		return nil, err
	}

	edges := make([]Edge, 0, len(order))
	for _, line := range order {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		edges = append(edges, Edge{Source: fields[0], Target: fields[1]})
	}
	return edges, nil
}

// Count returns the number of edge lines in the file.
func (s *EdgeStore) Count() (int, error) {
	_, order, err := s.readLines()
	if err != nil {
		return 0, err
	}
	return len(order), nil
}

func (s *EdgeStore) readLines() (map[string]struct{}, []string, error) {
	seen := make(map[string]struct{})
	var order []string

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return seen, order, nil
		}
		return nil, nil, fmt.Errorf("failed to read edge file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		order = append(order, line)
	}

	return seen, order, nil
}

func (s *EdgeStore) writeLines(lines []string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}

	if err := os.WriteFile(tempPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write edge file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace edge file: %w", err)
	}
	return nil
}
