package repository

import "errors"

// ErrStaleStatus reports a failed optimistic status check: the row exists but
// its status no longer matches the one the caller read. Services surface this
// as a retryable concurrent-modification error.
var ErrStaleStatus = errors.New("entity status changed concurrently")

type groupCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

func groupCountsToMap(rows []groupCount) map[string]int {
	result := make(map[string]int, len(rows))
	for _, row := range rows {
		result[row.Key] = row.Count
	}
	return result
}
