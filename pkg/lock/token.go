package lock

import (
	"crypto/rand"
	"encoding/hex"
)

// randomToken generates an opaque lock-ownership token, following the
// teacher's internal/uid.Uid() shape (random bytes, hex-encoded) so a
// Lock can tell its own acquisition apart from one a later holder took
// out after this one's TTL lapsed.
func randomToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
