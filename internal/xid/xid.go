// Package xid mints the prefixed identifiers for rows the engine creates
// (orders, lines, payments, audit entries). Prefixes keep raw ids readable
// in logs and audit trails.
package xid

import (
	"crypto/rand"
	"fmt"
	"time"
)

// New returns "<prefix>-<unix nanos>-<random hex tail>". The timestamp keeps
// ids roughly sortable by creation; the tail rules out collisions across
// processes. If the random source fails the id degrades to timestamp-only.
func New(prefix string) string {
	now := time.Now().UnixNano()
	var tail [8]byte
	if _, err := rand.Read(tail[:]); err != nil {
		return fmt.Sprintf("%s-%d", prefix, now)
	}
	return fmt.Sprintf("%s-%d-%x", prefix, now, tail)
}
