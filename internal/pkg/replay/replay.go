// Package replay remembers which TOTP time steps have already been used so a
// code can be accepted at most once.
package replay

import (
	"context"
	"strconv"
	"time"
)

// Guard records used (key, step) pairs.
type Guard interface {
	// Claim marks step as used for key and reports whether this call was the
	// first to do so. Entries are forgotten after ttl.
	Claim(ctx context.Context, key string, step uint64, ttl time.Duration) (bool, error)
}

func entryKey(key string, step uint64) string {
	return key + ":" + strconv.FormatUint(step, 10)
}
