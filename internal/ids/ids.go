// Package ids mints the primary keys used across the IAM tables.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// A single monotonic entropy source keeps ids created in the same
// millisecond ordered; the mutex makes it safe for concurrent inserts.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a ULID. Ids sort by creation time, so org, user and role
// listings come back in insertion order without an extra column.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
