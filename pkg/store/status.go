package store

import (
	"path/filepath"
	"time"

	"ignetwork/pkg/logger"
)

// StatusFileName records scheduling state across sessions.
const StatusFileName = "auto_scrape_status.json"

const dayLayout = "2006-01-02"

// RunStatus is the scheduler's durable state. Sessions, the natural break
// flag and the chosen break window belong to a single calendar day and are
// reset on rollover. The totals are lifetime figures for the root account.
type RunStatus struct {
	Date              string    `json:"date"`
	Sessions          int       `json:"sessions"`
	LastRun           time.Time `json:"last_run"`
	TotalFollowers    int       `json:"total_followers"`
	TotalFollowing    int       `json:"total_following"`
	NaturalBreakTaken bool      `json:"natural_break_taken"`
	BreakHourMin      int       `json:"break_hour_min"`
	BreakHourMax      int       `json:"break_hour_max"`
}

// RolloverIfNewDay resets the per-day fields when now falls on a different
// date than the recorded one. Returns true when a reset happened.
func (r *RunStatus) RolloverIfNewDay(now time.Time) bool {
	day := now.Format(dayLayout)
	if r.Date == day {
		return false
	}
	r.Date = day
	r.Sessions = 0
	r.NaturalBreakTaken = false
	r.BreakHourMin = 0
	r.BreakHourMax = 0
	return true
}

// StatusStore reads and writes the status file.
type StatusStore struct {
	path   string
	logger logger.Logger
}

// NewStatusStore creates a status store rooted in dataDir.
func NewStatusStore(dataDir string) *StatusStore {
	return &StatusStore{
		path:   filepath.Join(dataDir, StatusFileName),
		logger: logger.GetLogger(),
	}
}

// Load returns the persisted status. Missing or corrupt files yield a zero
// status, which every consumer treats as "never ran".
func (s *StatusStore) Load() *RunStatus {
	var status RunStatus
	if _, err := loadJSON(s.path, &status); err != nil {
		s.logger.WithError(err).Warn("Status file unreadable, starting fresh")
		return &RunStatus{}
	}
	return &status
}

// Save persists the status atomically.
func (s *StatusStore) Save(status *RunStatus) error {
	return saveJSON(s.path, status)
}
