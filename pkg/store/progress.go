package store

import (
	"path/filepath"
	"time"

	"ignetwork/pkg/logger"
)

// ProgressFileName holds one record per visited account.
const ProgressFileName = "scraping_progress.json"

// AccountRecord is the durable outcome of processing one account. Revisits
// overwrite the whole record.
type AccountRecord struct {
	Processed          bool      `json:"processed"`
	Skipped            bool      `json:"skipped"`
	RateLimited        bool      `json:"rate_limited"`
	FollowersCount     int       `json:"followers_count"`
	FollowingCount     int       `json:"following_count"`
	FollowersRetrieved int       `json:"followers_retrieved"`
	FollowingRetrieved int       `json:"following_retrieved"`
	Timestamp          time.Time `json:"timestamp"`
}

// Complete reports whether the account needs no further visits. A record
// flagged rate_limited stays eligible for a retry on a later session.
func (r AccountRecord) Complete() bool {
	return r.Processed && !r.RateLimited
}

// ProgressStore reads and writes the progress file. Every operation goes
// through disk so a crash between accounts loses at most the account in
// flight.
type ProgressStore struct {
	path   string
	logger logger.Logger
}

// NewProgressStore creates a progress store rooted in dataDir.
func NewProgressStore(dataDir string) *ProgressStore {
	return &ProgressStore{
		path:   filepath.Join(dataDir, ProgressFileName),
		logger: logger.GetLogger(),
	}
}

// All returns every record. A missing or corrupt file yields an empty map;
// corruption is logged and the next save starts the file over.
func (s *ProgressStore) All() map[string]AccountRecord {
	records := make(map[string]AccountRecord)
	if _, err := loadJSON(s.path, &records); err != nil {
		s.logger.WithError(err).Warn("Progress file unreadable, starting empty")
		return make(map[string]AccountRecord)
	}
	return records
}

// Get returns the record for username, if present.
func (s *ProgressStore) Get(username string) (AccountRecord, bool) {
	rec, ok := s.All()[username]
	return rec, ok
}

// Record overwrites the record for username and persists the file.
func (s *ProgressStore) Record(username string, rec AccountRecord) error {
	records := s.All()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	records[username] = rec
	return saveJSON(s.path, records)
}

// CompletedSet returns the usernames that need no further visits.
func (s *ProgressStore) CompletedSet() map[string]struct{} {
	done := make(map[string]struct{})
	for username, rec := range s.All() {
		if rec.Complete() {
			done[username] = struct{}{}
		}
	}
	return done
}
