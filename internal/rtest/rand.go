package rtest

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"testing"
)

// RNGForTest returns a PCG-backed RNG seeded from the test name,
// so that a test's random choices are repeatable across runs.
func RNGForTest(t testing.TB) *rand.Rand {
	seed := sha256.Sum256([]byte(t.Name()))
	return rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(seed[:8]),
		binary.BigEndian.Uint64(seed[8:16]),
	))
}
