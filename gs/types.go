// Package gs implements the ground station: it authenticates itself to the
// TA, maintains a local UAV directory snapshot, authenticates individual or
// batched UAVs, and distributes CRT-based group session keys.
package gs

import (
	"math/big"

	"github.com/52funny/egcda-uavs/crypto/pairing"
)

// TMax is the timestamp freshness window, in seconds, applied to every
// UAV authentication request.
const TMax = 10

// Config holds a ground station's identity and long-lived keypair.
type Config struct {
	Gid string
	Sk  pairing.Scalar
	Pk  pairing.G2
}

// NewConfig draws a fresh GS keypair for gid.
func NewConfig(gid string) (Config, error) {
	sk, err := pairing.RandomScalar()
	if err != nil {
		return Config{}, err
	}
	_, g2 := pairing.Generators()
	return Config{Gid: gid, Sk: sk, Pk: pairing.MulG2(g2, sk)}, nil
}

// DirectoryEntry is one UAV record in a GS's local snapshot, decoded from
// the ciphertext the TA returns from get_uav_list after authentication.
type DirectoryEntry struct {
	Uid string
	PkU pairing.G2
	C   string
	Z   pairing.G1
	P   *big.Int
}

// UavAuthRequest1 is a UAV's phase-1 lookup request.
type UavAuthRequest1 struct {
	Uid string `json:"uid"`
}

// UavAuthResponse1 returns the stored PUF challenge for the requested uid.
type UavAuthResponse1 struct {
	PufChallenge string `json:"puf_challenge"`
}

// UavAuthRequest2 is a UAV's phase-2 proof submission.
type UavAuthRequest2 struct {
	Uid   string `json:"uid"`
	Sigma string `json:"sigma"`
	X     string `json:"x"`
	TU    int64  `json:"t_u"`
}

// UavAuthResponse2 carries no payload; success is implied by a non-error reply.
type UavAuthResponse2 struct{}

// BatchUavAuthRequest1 looks up challenges for several uids at once.
type BatchUavAuthRequest1 struct {
	Uids []string `json:"uids"`
}

// BatchUavAuthResponse1 returns one challenge per requested uid, same order.
type BatchUavAuthResponse1 struct {
	PufChallenges []string `json:"puf_challenges"`
}

// BatchUavAuthRequest2 verifies several phase-2 proofs as a single aggregate check.
type BatchUavAuthRequest2 struct {
	Requests []UavAuthRequest2 `json:"requests"`
}

// BatchUavAuthResponse2 carries no payload.
type BatchUavAuthResponse2 struct{}

// UavCommRequest asks the GS to establish a session key with a UAV subset.
type UavCommRequest struct {
	UidK []string `json:"uid_k"`
}

// UavCommResponse is the CRT combinator μ and the PUF challenges the
// recipients need to re-derive their primes.
type UavCommResponse struct {
	Mu string   `json:"mu"`
	CM []string `json:"c_m"`
}
