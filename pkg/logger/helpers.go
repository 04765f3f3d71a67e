package logger

import "time"

// LogSessionStart logs the beginning of a collection session
func LogSessionStart(sessionNum, batchSize int) {
	GetLogger().InfoWithFields("collection session starting", map[string]interface{}{
		"session":    sessionNum,
		"batch_size": batchSize,
		"action":     "session_start",
	})
}

// LogSessionEnd logs the completion of a collection session
func LogSessionEnd(sessionNum, processed, failed int, duration time.Duration) {
	GetLogger().InfoWithFields("collection session finished", map[string]interface{}{
		"session":   sessionNum,
		"processed": processed,
		"failed":    failed,
		"duration":  duration,
		"action":    "session_end",
	})
}

// LogAccount logs the outcome of processing a single account
func LogAccount(account, outcome string, followers, following int) {
	GetLogger().InfoWithFields("account processed", map[string]interface{}{
		"account":   account,
		"outcome":   outcome,
		"followers": followers,
		"following": following,
	})
}

// LogRateLimit logs a rate-limit backoff for a list kind
func LogRateLimit(account, listKind string, wait time.Duration) {
	GetLogger().WarnWithFields("rate limit suspected, backing off", map[string]interface{}{
		"account":   account,
		"list_kind": listKind,
		"wait":      wait,
	})
}

// LogStorage logs a storage merge result
func LogStorage(file string, added, total int) {
	GetLogger().DebugWithFields("storage updated", map[string]interface{}{
		"file":  file,
		"added": added,
		"total": total,
	})
}
