// Package ids generates request correlation ids.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const maxExternalIDLen = 128

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable ULID.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// FromHeader accepts a caller supplied request id when it is short printable
// ASCII and otherwise mints a fresh one.
func FromHeader(v string) string {
	if v == "" || len(v) > maxExternalIDLen {
		return New()
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 0x21 || v[i] > 0x7e {
			return New()
		}
	}
	return v
}
