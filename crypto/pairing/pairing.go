// Package pairing wraps the BLS12-381 pairing primitives used throughout
// the protocol: compressed point encoding, the bilinear pairing check, and
// the hash-to-G1 construction used for every signature transcript.
package pairing

import (
	"encoding/hex"
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"golang.org/x/crypto/blake2b"

	"github.com/52funny/egcda-uavs/protoerr"
)

// DomainTag is the exact ASCII domain-separation tag used for every H_G1 call.
const DomainTag = "BLS_SIG_BLS12381G1_XMD:BLAKE2b-512_SSWU_RO_NUL_"

type (
	G1     = bls12381.G1Affine
	G2     = bls12381.G2Affine
	Scalar = fr.Element
)

// Generators returns the canonical g1, g2 generators.
func Generators() (G1, G2) {
	_, _, g1, g2 := bls12381.Generators()
	return g1, g2
}

// RandomScalar draws a uniformly random nonzero element of F_r.
func RandomScalar() (Scalar, error) {
	var s Scalar
	if _, err := s.SetRandom(); err != nil {
		return Scalar{}, fmt.Errorf("random scalar: %w", err)
	}
	return s, nil
}

// ScalarFromWide reduces an arbitrary-length big-endian byte string modulo r.
// Used for both the 64-byte Blake2b-512 wide reduction and the zero-padded
// PUF response reduction.
func ScalarFromWide(wide []byte) Scalar {
	var s Scalar
	s.SetBytes(wide)
	return s
}

// ScalarFromBlake2b computes scalar_from_hash(Blake2b512(data)).
func ScalarFromBlake2b(data []byte) Scalar {
	h := blake2b.Sum512(data)
	return ScalarFromWide(h[:])
}

// PadRight64 zero-pads b on the right out to 64 bytes, truncating if longer.
func PadRight64(b []byte) []byte {
	out := make([]byte, 64)
	copy(out, b)
	return out
}

func scalarToBigInt(s Scalar) *big.Int {
	bi := new(big.Int)
	s.BigInt(bi)
	return bi
}

// MulG1 computes p*s in G1.
func MulG1(p G1, s Scalar) G1 {
	var res G1
	res.ScalarMultiplication(&p, scalarToBigInt(s))
	return res
}

// MulG2 computes p*s in G2.
func MulG2(p G2, s Scalar) G2 {
	var res G2
	res.ScalarMultiplication(&p, scalarToBigInt(s))
	return res
}

// AddG1 computes a+b in G1.
func AddG1(a, b G1) G1 {
	var aJ, bJ, rJ bls12381.G1Jac
	aJ.FromAffine(&a)
	bJ.FromAffine(&b)
	rJ.Set(&aJ).AddAssign(&bJ)
	var r G1
	r.FromJacobian(&rJ)
	return r
}

// SumG1 folds AddG1 over points, returning the point at infinity for an empty slice.
func SumG1(points []G1) G1 {
	var acc bls12381.G1Jac
	for i := range points {
		var pJ bls12381.G1Jac
		pJ.FromAffine(&points[i])
		acc.AddAssign(&pJ)
	}
	var r G1
	r.FromJacobian(&acc)
	return r
}

// NegG1 computes -p.
func NegG1(p G1) G1 {
	var r G1
	r.Neg(&p)
	return r
}

// HashToG1 maps msg into G1 using the SSWU RO suite under DomainTag.
func HashToG1(msg []byte) (G1, error) {
	p, err := bls12381.HashToG1(msg, []byte(DomainTag))
	if err != nil {
		return G1{}, fmt.Errorf("%w: hash to curve: %v", protoerr.ErrDecode, err)
	}
	return p, nil
}

// CompressG1 returns the 48-byte compressed encoding of p.
func CompressG1(p G1) []byte {
	b := p.Bytes()
	return b[:]
}

// CompressG2 returns the 96-byte compressed encoding of p.
func CompressG2(p G2) []byte {
	b := p.Bytes()
	return b[:]
}

// DecompressG1 parses a 48-byte compressed G1 point.
func DecompressG1(b []byte) (G1, error) {
	var p G1
	if len(b) != bls12381.SizeOfG1AffineCompressed {
		return G1{}, fmt.Errorf("%w: want %d bytes, got %d", protoerr.ErrDecode, bls12381.SizeOfG1AffineCompressed, len(b))
	}
	if _, err := p.SetBytes(b); err != nil {
		return G1{}, fmt.Errorf("%w: %v", protoerr.ErrDecode, err)
	}
	return p, nil
}

// DecompressG2 parses a 96-byte compressed G2 point.
func DecompressG2(b []byte) (G2, error) {
	var p G2
	if len(b) != bls12381.SizeOfG2AffineCompressed {
		return G2{}, fmt.Errorf("%w: want %d bytes, got %d", protoerr.ErrDecode, bls12381.SizeOfG2AffineCompressed, len(b))
	}
	if _, err := p.SetBytes(b); err != nil {
		return G2{}, fmt.Errorf("%w: %v", protoerr.ErrDecode, err)
	}
	return p, nil
}

// AESKeyFromG2 takes the first 16 bytes of the compressed point as the
// AES-128 key derived from a shared secret.
func AESKeyFromG2(p G2) [16]byte {
	var key [16]byte
	b := p.Bytes()
	copy(key[:], b[:16])
	return key
}

// HexG1 hex-encodes the compressed form of p.
func HexG1(p G1) string { return hex.EncodeToString(CompressG1(p)) }

// HexG2 hex-encodes the compressed form of p.
func HexG2(p G2) string { return hex.EncodeToString(CompressG2(p)) }

// G1FromHex decodes a hex-encoded compressed G1 point.
func G1FromHex(s string) (G1, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return G1{}, fmt.Errorf("%w: %v", protoerr.ErrDecode, err)
	}
	return DecompressG1(b)
}

// G2FromHex decodes a hex-encoded compressed G2 point.
func G2FromHex(s string) (G2, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return G2{}, fmt.Errorf("%w: %v", protoerr.ErrDecode, err)
	}
	return DecompressG2(b)
}

// ScalarToHex hex-encodes the 32-byte big-endian scalar.
func ScalarToHex(s Scalar) string {
	b := s.Bytes()
	return hex.EncodeToString(b[:])
}

// ScalarFromHex decodes a 32-byte big-endian hex scalar.
func ScalarFromHex(s string) (Scalar, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Scalar{}, fmt.Errorf("%w: %v", protoerr.ErrDecode, err)
	}
	var sc Scalar
	sc.SetBytes(b)
	return sc, nil
}

// BE8 encodes t as 8 big-endian bytes, the transcript encoding for all timestamps.
func BE8(t int64) []byte {
	var b [8]byte
	u := uint64(t)
	for i := 7; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}
	return b[:]
}

// PairEqual reports whether e(lhsG1, lhsG2) == e(rhsG1, rhsG2).
func PairEqual(lhsG1 G1, lhsG2 G2, rhsG1 G1, rhsG2 G2) (bool, error) {
	ok, err := bls12381.PairingCheck([]G1{lhsG1, NegG1(rhsG1)}, []G2{lhsG2, rhsG2})
	if err != nil {
		return false, fmt.Errorf("pairing check: %w", err)
	}
	return ok, nil
}

// PairingProductCheck reports whether e(lhsG1, lhsG2) == Π_i e(rhsG1[i], rhsG2[i]).
// It is the multi-term generalization of PairEqual used for the
// batch-verification equations.
func PairingProductCheck(lhsG1 G1, lhsG2 G2, rhsG1 []G1, rhsG2 []G2) (bool, error) {
	if len(rhsG1) != len(rhsG2) {
		return false, fmt.Errorf("pairing product check: mismatched operand counts")
	}
	P := make([]G1, 0, len(rhsG1)+1)
	Q := make([]G2, 0, len(rhsG2)+1)
	P = append(P, lhsG1)
	Q = append(Q, lhsG2)
	for i := range rhsG1 {
		P = append(P, NegG1(rhsG1[i]))
		Q = append(Q, rhsG2[i])
	}
	ok, err := bls12381.PairingCheck(P, Q)
	if err != nil {
		return false, fmt.Errorf("pairing check: %w", err)
	}
	return ok, nil
}
