package utils

import (
	"math/rand"
	"sync"
	"time"
)

var randSeedOnce sync.Once

// ensureRandSeeded initializes the global math/rand source once.
// The top-level math/rand functions use a locked source internally
// and are safe for concurrent use after seeding.
func ensureRandSeeded() {
	randSeedOnce.Do(func() {
		rand.Seed(time.Now().UnixNano())
	})
}

// GenerateRandomSuffix generates a random 4-character suffix using
// lowercase letters and numbers. Used to keep generated tool call IDs
// unique across responses within a process.
func GenerateRandomSuffix() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	ensureRandSeeded()
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = charset[rand.Intn(len(charset))]
	}
	return string(suffix)
}
