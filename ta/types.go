// Package ta implements the trusted authority: it issues GS and UAV
// credentials, authenticates GSes, and serves the encrypted UAV directory.
package ta

import (
	"math/big"
	"time"

	"github.com/52funny/egcda-uavs/crypto/pairing"
)

// TMax is the timestamp freshness window, in seconds, applied to every
// GS authentication request.
const TMax = 10

// PufChallengeLen is the PUF challenge/response length in bytes.
const PufChallengeLen = 12

// pendingGC is how long an uncommitted phase-1 registration survives before
// GCStalePending reclaims it.
const pendingGC = 5 * time.Minute

// Config holds the TA's long-lived keypair.
type Config struct {
	Sk pairing.Scalar
	Pk pairing.G2
}

// NewConfig draws a fresh TA keypair.
func NewConfig() (Config, error) {
	sk, err := pairing.RandomScalar()
	if err != nil {
		return Config{}, err
	}
	_, g2 := pairing.Generators()
	return Config{Sk: sk, Pk: pairing.MulG2(g2, sk)}, nil
}

// GsRecord is a registered ground station's identity.
type GsRecord struct {
	Gid string
	Pk  pairing.G2
}

// UavRecord is a committed UAV registration (post phase-2).
type UavRecord struct {
	Uid string
	Sk  pairing.Scalar
	Pk  pairing.G2
	C   string // hex PUF challenge
	R   string // hex PUF response
	P   *big.Int
}

// pendingUav is an in-flight phase-1 registration awaiting phase-2.
type pendingUav struct {
	Uid        string
	Sk         pairing.Scalar
	Pk         pairing.G2
	C          string
	insertedAt time.Time
}

// GsRegisterRequest registers a GS's gid/public key.
type GsRegisterRequest struct {
	Gid      string `json:"gid"`
	GsPubkey string `json:"gs_pubkey"`
}

// GsAuthRequest is the GS→TA authentication message.
type GsAuthRequest struct {
	Gid   string `json:"gid"`
	TG    int64  `json:"t_g"`
	Sigma string `json:"sigma"`
}

// GsAuthResponse carries no payload; success is implied by a non-error reply.
type GsAuthResponse struct{}

// GsAuthResponseStruct is one record of the UAV directory handed to an
// authenticated GS, in its on-wire shape.
type GsAuthResponseStruct struct {
	Uid string `json:"uid"`
	PkU string `json:"pk_u"`
	C   string `json:"c"`
	Z   string `json:"z"`
	P   string `json:"p"`
}

// UavRegisterRequest1 carries no fields; a UAV simply asks to begin registration.
type UavRegisterRequest1 struct{}

// UavRegisterResponse1 is the TA's phase-1 issuance.
type UavRegisterResponse1 struct {
	Uid          string `json:"uid"`
	PufChallenge string `json:"puf_challenge"`
	UavSk        string `json:"uav_sk"`
	UavPubkey    string `json:"uav_pubkey"`
}

// UavRegisterRequest2 is the UAV's phase-2 PUF-response submission.
type UavRegisterRequest2 struct {
	Uid         string `json:"uid"`
	PufResponse string `json:"puf_response"`
}

// UavRegisterResponse2 carries no payload.
type UavRegisterResponse2 struct{}
