package security

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"
)

// DefaultResetCodeLength is the length of generated reset codes.
const DefaultResetCodeLength = 8

// Uppercase letters and digits minus the visually ambiguous I, O, 1, 0.
const resetCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ResetCodeGenerator produces short human-enterable one-time codes. The
// generator is seeded from a hash of the startup time, the process id, and a
// server secret; adequate for a time-boxed single-use code, not a substitute
// for a cryptographic token.
type ResetCodeGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewResetCodeGenerator seeds a generator with the given server secret.
func NewResetCodeGenerator(secret string) *ResetCodeGenerator {
	seedInput := fmt.Sprintf("%d:%d:%s", time.Now().UnixNano(), os.Getpid(), secret)
	sum := sha256.Sum256([]byte(seedInput))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))

	return &ResetCodeGenerator{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// Generate returns a code of the requested length drawn from the unambiguous
// alphabet. A non-positive length falls back to the default.
func (g *ResetCodeGenerator) Generate(length int) string {
	if length <= 0 {
		length = DefaultResetCodeLength
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	buf := make([]byte, length)
	for i := range buf {
		buf[i] = resetCodeAlphabet[g.rnd.Intn(len(resetCodeAlphabet))]
	}
	return string(buf)
}
