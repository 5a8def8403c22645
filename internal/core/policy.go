package core

import "time"

// MutabilityWindow is how long after creation a transaction may still be
// edited or deleted.
const MutabilityWindow = 12 * time.Hour

// IsMutable reports whether a transaction created at createdAt may still be
// modified at now. Pure function: callers inject the clock.
func IsMutable(createdAt, now time.Time) bool {
	return now.Sub(createdAt) <= MutabilityWindow
}
