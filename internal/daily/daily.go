// apps/go-server/internal/daily/daily.go
//
// Deterministic daily deal: every player who starts the daily game on the
// same UTC date gets the same symbols in the same order.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/rand/v2"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns HMAC-SHA256(salt, YYYY-MM-DD), sized for a ChaCha8 source.
func Seed(date time.Time, salt string) [32]byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	var seed [32]byte
	copy(seed[:], h.Sum(nil))
	return seed
}

// Rand returns the random source for the given date's deal.
func Rand(date time.Time, salt string) *rand.Rand {
	return rand.New(rand.NewChaCha8(Seed(date, salt)))
}
