// Package primes implements the hash-to-prime construction that roots a
// UAV's PUF response to a 256-bit prime, and the Chinese-Remainder-Theorem
// combinator used to broadcast a group session key to a UAV subset.
package primes

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"

	"github.com/52funny/egcda-uavs/protoerr"
)

// BitLength is the target size of every hash-to-prime output.
const BitLength = 256

// MillerRabinRounds is the number of Miller-Rabin rounds applied to each candidate.
const MillerRabinRounds = 25

// HashToPrime draws a deterministic 256-bit prime from data: seed a ChaCha20
// stream from Blake2b-512(data), pull successive candidate blocks, force the
// low bit odd, and keep the first block that passes Miller-Rabin.
func HashToPrime(data []byte) (*big.Int, error) {
	seed := blake2b.Sum512(data)

	var key [chacha20.KeySize]byte
	copy(key[:], seed[:32])
	nonce := make([]byte, chacha20.NonceSize)

	stream, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		return nil, fmt.Errorf("init hash-to-prime stream: %w", err)
	}

	const byteLen = BitLength / 8
	extraBits := byteLen*8 - BitLength // 0 at BitLength=256, kept for clarity
	zero := make([]byte, byteLen)
	buf := make([]byte, byteLen)

	for {
		stream.XORKeyStream(buf, zero)

		if extraBits > 0 {
			buf[0] &= 0xFF >> uint(extraBits)
		}
		buf[byteLen-1] |= 1

		candidate := new(big.Int).SetBytes(buf)
		if candidate.ProbablyPrime(MillerRabinRounds) {
			return candidate, nil
		}
	}
}

// CRTCombine computes η = Σ M_i·M_i⁻¹ over M = Π p_i (the sum is not
// reduced mod M), so that for any
// k, (k·η) mod p_i == k mod p_i. Fails with ErrDegenerateCrt if the primes are
// not pairwise distinct.
func CRTCombine(ps []*big.Int) (*big.Int, error) {
	if len(ps) == 0 {
		return nil, fmt.Errorf("crt combine: empty prime set")
	}
	if err := checkPairwiseDistinct(ps); err != nil {
		return nil, err
	}

	m := big.NewInt(1)
	for _, p := range ps {
		m.Mul(m, p)
	}

	eta := big.NewInt(0)
	for _, p := range ps {
		mi := new(big.Int).Div(m, p)
		miInv := new(big.Int).ModInverse(mi, p)
		if miInv == nil {
			// only possible if p divides mi, i.e. a duplicate slipped past checkPairwiseDistinct
			return nil, protoerr.ErrDegenerateCrt
		}
		eta.Add(eta, new(big.Int).Mul(mi, miInv))
	}
	return eta, nil
}

// CRTCombinePadded computes the subset-privacy variant of CRTCombine: the
// modulus M is the product over real and pad primes together, but the
// residue sum runs over the real primes only. The result satisfies
// η ≡ 1 (mod p) for every real p and η ≡ 0 (mod q) for every pad q, so a
// holder of a pad prime recovers 0 instead of the group key while μ = k·η
// grows to the same magnitude as a combinator over the full directory.
func CRTCombinePadded(real, pad []*big.Int) (*big.Int, error) {
	if len(pad) == 0 {
		return CRTCombine(real)
	}
	if len(real) == 0 {
		return nil, fmt.Errorf("crt combine: empty prime set")
	}
	all := make([]*big.Int, 0, len(real)+len(pad))
	all = append(all, real...)
	all = append(all, pad...)
	if err := checkPairwiseDistinct(all); err != nil {
		return nil, err
	}

	m := big.NewInt(1)
	for _, p := range all {
		m.Mul(m, p)
	}

	eta := big.NewInt(0)
	for _, p := range real {
		mi := new(big.Int).Div(m, p)
		miInv := new(big.Int).ModInverse(mi, p)
		if miInv == nil {
			return nil, protoerr.ErrDegenerateCrt
		}
		eta.Add(eta, new(big.Int).Mul(mi, miInv))
	}
	return eta, nil
}

func checkPairwiseDistinct(ps []*big.Int) error {
	seen := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		k := p.String()
		if _, ok := seen[k]; ok {
			return protoerr.ErrDegenerateCrt
		}
		seen[k] = struct{}{}
	}
	return nil
}
