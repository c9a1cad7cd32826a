package primes

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/52funny/egcda-uavs/protoerr"
)

func TestHashToPrimeIsPrimeAndDeterministic(t *testing.T) {
	p1, err := HashToPrime([]byte("test data!"))
	require.NoError(t, err)
	require.True(t, p1.ProbablyPrime(20))

	p2, err := HashToPrime([]byte("test data!"))
	require.NoError(t, err)
	require.Equal(t, 0, p1.Cmp(p2))

	p3, err := HashToPrime([]byte("different data"))
	require.NoError(t, err)
	require.NotEqual(t, 0, p1.Cmp(p3))
}

func TestHashToPrimeBitLength(t *testing.T) {
	p, err := HashToPrime([]byte("bit length fixture"))
	require.NoError(t, err)
	require.True(t, p.BitLen() <= BitLength)
	require.True(t, p.Bit(0) == 1)
}

func randomPrime(t *testing.T, bits int) *big.Int {
	t.Helper()
	p, err := rand.Prime(rand.Reader, bits)
	require.NoError(t, err)
	return p
}

func TestCRTCombineRecoversKMod(t *testing.T) {
	var primeSet []*big.Int
	for i := 0; i < 5; i++ {
		primeSet = append(primeSet, randomPrime(t, 128))
	}

	eta, err := CRTCombine(primeSet)
	require.NoError(t, err)

	k := big.NewInt(123456789)
	mu := new(big.Int).Mul(k, eta)

	for _, p := range primeSet {
		got := new(big.Int).Mod(mu, p)
		want := new(big.Int).Mod(k, p)
		require.Equal(t, 0, got.Cmp(want), "mu mod p must equal k mod p")
	}
}

func TestCRTCombineRejectsDuplicatePrimes(t *testing.T) {
	p := randomPrime(t, 64)
	_, err := CRTCombine([]*big.Int{p, new(big.Int).Set(p)})
	require.ErrorIs(t, err, protoerr.ErrDegenerateCrt)
}

func TestCRTCombinePaddedDoesNotLeakKeyToFakePrimes(t *testing.T) {
	var real, fake []*big.Int
	for i := 0; i < 3; i++ {
		real = append(real, randomPrime(t, 128))
	}
	for i := 0; i < 2; i++ {
		fake = append(fake, randomPrime(t, 128))
	}

	eta, err := CRTCombinePadded(real, fake)
	require.NoError(t, err)

	k := big.NewInt(42)
	mu := new(big.Int).Mul(k, eta)

	for _, p := range real {
		require.Equal(t, 0, new(big.Int).Mod(mu, p).Cmp(new(big.Int).Mod(k, p)))
	}
	for _, q := range fake {
		require.NotEqual(t, 0, new(big.Int).Mod(mu, q).Cmp(new(big.Int).Mod(k, q)))
	}
}

func TestCRTCombinePaddedNoPadMatchesCombine(t *testing.T) {
	var primeSet []*big.Int
	for i := 0; i < 3; i++ {
		primeSet = append(primeSet, randomPrime(t, 128))
	}

	want, err := CRTCombine(primeSet)
	require.NoError(t, err)
	got, err := CRTCombinePadded(primeSet, nil)
	require.NoError(t, err)
	require.Equal(t, 0, want.Cmp(got))
}

func TestCRTCombinePaddedRejectsFakeEqualToReal(t *testing.T) {
	p := randomPrime(t, 128)
	q := randomPrime(t, 128)
	_, err := CRTCombinePadded([]*big.Int{p, q}, []*big.Int{new(big.Int).Set(p)})
	require.ErrorIs(t, err, protoerr.ErrDegenerateCrt)
}
