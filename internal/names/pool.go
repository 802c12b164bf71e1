// Package names provides the finite pool of readable default names handed
// out to tunnels forwarding "localhost", following the same pattern as the
// teacher's tunnel token generator: a package-level, dependency-free helper
// that the registry calls without knowing how names are produced.
package names

import (
	"crypto/rand"
	_ "embed"
	"math/big"
	"strings"
)

//go:embed animals.txt
var raw string

var pool = strings.Fields(raw)

// Random returns a single lowercase, single-word name drawn uniformly from
// the embedded pool. It panics if the pool is empty, which would be a
// packaging bug caught immediately in any test run, or if crypto/rand
// fails to supply random bytes.
func Random() string {
	if len(pool) == 0 {
		panic("names: pool is empty")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		// crypto/rand.Reader failing indicates a broken host; there is no
		// sensible fallback for naming a tunnel.
		panic("names: failed to read random bytes: " + err.Error())
	}
	return pool[n.Int64()]
}

// Len reports the size of the pool, exposed so callers (and tests) can
// reason about collision probability / retry caps.
func Len() int { return len(pool) }
