package gs

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// fakePrimePool is the subset-privacy padding set: primes
// distinct from every real UAV prime in the directory, drawn lazily so that
// a CRT combinator built over a small requested subset can still be padded
// up to the full directory size. Extension is one-shot per directory
// generation: InstallDirectory calls extendTo once per new snapshot.
type fakePrimePool struct {
	mu     sync.Mutex
	primes []*big.Int
}

// extendTo grows the pool (never shrinks it) until it holds target primes,
// none equal to any entry in real.
func (f *fakePrimePool) extendTo(target int, real []*big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	realSet := make(map[string]struct{}, len(real))
	for _, p := range real {
		realSet[p.String()] = struct{}{}
	}
	poolSet := make(map[string]struct{}, len(f.primes))
	for _, p := range f.primes {
		poolSet[p.String()] = struct{}{}
	}

	for len(f.primes) < target {
		candidate, err := randomOddCandidate256()
		if err != nil {
			return fmt.Errorf("fake prime pool: %w", err)
		}
		prime := nextPrime(candidate)
		key := prime.String()
		if _, dup := realSet[key]; dup {
			continue
		}
		if _, dup := poolSet[key]; dup {
			continue
		}
		poolSet[key] = struct{}{}
		f.primes = append(f.primes, prime)
	}
	return nil
}

// sample returns up to n pool primes, distinct from one another.
func (f *fakePrimePool) sample(n int) []*big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.primes) {
		n = len(f.primes)
	}
	out := make([]*big.Int, n)
	copy(out, f.primes[:n])
	return out
}

func randomOddCandidate256() (*big.Int, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	buf[31] |= 1
	return new(big.Int).SetBytes(buf), nil
}

// nextPrime advances n to the next probable prime >= n, stepping by 2 to
// stay odd.
func nextPrime(n *big.Int) *big.Int {
	candidate := new(big.Int).Set(n)
	if candidate.Bit(0) == 0 {
		candidate.Add(candidate, big.NewInt(1))
	}
	two := big.NewInt(2)
	for !candidate.ProbablyPrime(25) {
		candidate.Add(candidate, two)
	}
	return candidate
}
