package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandSource provides random numbers for picking the next candidate.
// Tests inject a deterministic source.
type RandSource interface {
	// Intn returns a random integer in [0, n). Panics if n <= 0.
	Intn(n int) int
}

// cryptoRandSource wraps crypto/rand for production use
type cryptoRandSource struct{}

// Intn returns a uniformly distributed integer in [0, n).
// Panics if n <= 0 (programmer error).
func (cryptoRandSource) Intn(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("cryptoRandSource.Intn: n must be positive, got %d", n))
	}
	// rand.Int does not error when using rand.Reader
	// https://pkg.go.dev/crypto/rand#Int
	nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(nBig.Int64())
}

// DefaultRandSource is the production source.
var DefaultRandSource RandSource = cryptoRandSource{}

// PickCandidate returns the index of a random entry of a pool of size n, or -1
// for an empty pool. A nil source uses DefaultRandSource.
func PickCandidate(n int, randSource RandSource) int {
	if n <= 0 {
		return -1
	}
	if randSource == nil {
		randSource = DefaultRandSource
	}
	return randSource.Intn(n)
}
