// Package queue manages the pending-account file. Each line is a profile
// URL; the head is the next account to visit. The file is shared with
// external tooling, so writes take a file lock and are full atomic
// replacements.
package queue

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"ignetwork/pkg/logger"
)

// QueueFileName is the pending queue shared with external tooling.
const QueueFileName = "followingLinks.txt"

// Queue is the durable pending-account list.
type Queue struct {
	path   string
	lock   *flock.Flock
	logger logger.Logger
}

// New creates a queue rooted in dataDir.
func New(dataDir string) *Queue {
	path := filepath.Join(dataDir, QueueFileName)
	return &Queue{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.GetLogger(),
	}
}

// ProfileURL builds the queue entry for a username.
func ProfileURL(username string) string {
	return "https://www.instagram.com/" + username + "/"
}

// Username extracts the profile username from a queue entry. Returns ""
// for links it cannot parse.
func Username(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	return parts[0]
}

// valid keeps only absolute Instagram profile links. Everything else in
// the file is treated as noise and silently dropped on the next rewrite.
func valid(link string) bool {
	if link == "" || !strings.HasPrefix(link, "http") {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if !strings.Contains(u.Host, "instagram.com") {
		return false
	}
	return Username(link) != ""
}

// Load returns the sanitized queue in file order, first occurrence wins.
func (q *Queue) Load() ([]string, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !valid(line) {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		links = append(links, line)
	}
	return links, nil
}

// Len returns the current queue depth.
func (q *Queue) Len() (int, error) {
	links, err := q.Load()
	if err != nil {
		return 0, err
	}
	return len(links), nil
}

// Append adds links not already queued, preserving order, and returns how
// many were new. Invalid links are dropped.
func (q *Queue) Append(ctx context.Context, links []string) (int, error) {
	return q.rewrite(ctx, func(current []string) ([]string, int) {
		seen := make(map[string]struct{}, len(current))
		for _, l := range current {
			seen[l] = struct{}{}
		}
		added := 0
		for _, l := range links {
			l = strings.TrimSpace(l)
			if !valid(l) {
				continue
			}
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			current = append(current, l)
			added++
		}
		return current, added
	})
}

// Pop removes and returns the head of the queue.
func (q *Queue) Pop(ctx context.Context) (string, bool, error) {
	var head string
	var ok bool
	_, err := q.rewrite(ctx, func(current []string) ([]string, int) {
		if len(current) == 0 {
			return current, 0
		}
		head, ok = current[0], true
		return current[1:], 1
	})
	return head, ok, err
}

// PushTail re-adds a link at the tail, used when a visit failed
// transiently and should be retried after the rest of the queue.
func (q *Queue) PushTail(ctx context.Context, link string) error {
	link = strings.TrimSpace(link)
	if !valid(link) {
		return fmt.Errorf("refusing to queue invalid link: %q", link)
	}
	_, err := q.rewrite(ctx, func(current []string) ([]string, int) {
		for i, l := range current {
			if l == link {
				current = append(current[:i], current[i+1:]...)
				break
			}
		}
		return append(current, link), 1
	})
	return err
}

// Reconcile drops entries whose account is already complete and returns
// how many were removed.
func (q *Queue) Reconcile(ctx context.Context, completed map[string]struct{}) (int, error) {
	removed, err := q.rewrite(ctx, func(current []string) ([]string, int) {
		kept := current[:0]
		dropped := 0
		for _, l := range current {
			if _, done := completed[Username(l)]; done {
				dropped++
				continue
			}
			kept = append(kept, l)
		}
		return kept, dropped
	})
	if err == nil && removed > 0 {
		q.logger.WithField("removed", removed).Info("Queue reconciled against progress records")
	}
	return removed, err
}

// rewrite loads the queue, applies fn and writes the result back under the
// file lock. fn's int result is returned when the write succeeds.
func (q *Queue) rewrite(ctx context.Context, fn func([]string) ([]string, int)) (int, error) {
	locked, err := q.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return 0, fmt.Errorf("failed to lock queue file: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("queue file lock unavailable")
	}
	defer q.lock.Unlock()

	current, err := q.Load()
	if err != nil {
		return 0, err
	}

	next, n := fn(current)
	if err := q.write(next); err != nil {
		return 0, err
	}
	return n, nil
}

func (q *Queue) write(links []string) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tempPath := q.path + ".tmp"
	content := strings.Join(links, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(tempPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := os.Rename(tempPath, q.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace queue file: %w", err)
	}
	return nil
}
