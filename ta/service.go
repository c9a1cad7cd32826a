package ta

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/52funny/egcda-uavs/crypto/aesgcm"
	"github.com/52funny/egcda-uavs/crypto/pairing"
	"github.com/52funny/egcda-uavs/crypto/primes"
	"github.com/52funny/egcda-uavs/protoerr"
)

const maxUidAttempts = 8

// Service is the trusted authority's protocol state: registered GSes, their
// derived session keys, and the authoritative UAV directory. All maps are
// concurrent-safe; handlers run one per client connection (see package wire).
type Service struct {
	cfg Config
	log zerolog.Logger

	gsRecords     sync.Map // gid -> GsRecord
	gsSessionKeys sync.Map // gid -> pairing.G2 (ssk)
	pending       sync.Map // uid -> pendingUav
	directory     sync.Map // uid -> UavRecord
}

// NewService builds a Service around cfg.
func NewService(cfg Config, log zerolog.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// GetTaPubkey returns the hex-encoded TA public key.
func (s *Service) GetTaPubkey() string {
	return pairing.HexG2(s.cfg.Pk)
}

// RegisterGs records a GS's (gid, public key).
func (s *Service) RegisterGs(req GsRegisterRequest) error {
	pk, err := pairing.G2FromHex(req.GsPubkey)
	if err != nil {
		return fmt.Errorf("register gs %s: %w", req.Gid, err)
	}
	s.gsRecords.Store(req.Gid, GsRecord{Gid: req.Gid, Pk: pk})
	s.log.Info().Str("gid", abbreviate(req.Gid)).Msg("gs registered")
	return nil
}

// AuthenticateGs verifies a GS's timestamped signature and, on success,
// derives and stores the shared session key.
func (s *Service) AuthenticateGs(req GsAuthRequest, now time.Time) (*GsAuthResponse, error) {
	if absInt64(now.Unix()-req.TG) > TMax {
		return nil, fmt.Errorf("%w: gs %s t_g=%d", protoerr.ErrStale, req.Gid, req.TG)
	}

	v, ok := s.gsRecords.Load(req.Gid)
	if !ok {
		return nil, fmt.Errorf("%w: gid %s", protoerr.ErrUnknownGid, req.Gid)
	}
	gsRec := v.(GsRecord)

	sigma, err := pairing.G1FromHex(req.Sigma)
	if err != nil {
		return nil, fmt.Errorf("authenticate gs %s: %w", req.Gid, err)
	}

	transcript := append(append([]byte{}, req.Gid...), pairing.BE8(req.TG)...)
	tau, err := pairing.HashToG1(transcript)
	if err != nil {
		return nil, fmt.Errorf("authenticate gs %s: %w", req.Gid, err)
	}

	_, g2 := pairing.Generators()
	ok2, err := pairing.PairEqual(sigma, g2, tau, gsRec.Pk)
	if err != nil {
		return nil, fmt.Errorf("authenticate gs %s: %w", req.Gid, err)
	}
	if !ok2 {
		return nil, fmt.Errorf("%w: gid %s", protoerr.ErrBadSig, req.Gid)
	}

	x := pairing.ScalarFromBlake2b(pairing.CompressG1(tau))
	var xsk pairing.Scalar
	xsk.Mul(&x, &s.cfg.Sk)
	ssk := pairing.MulG2(gsRec.Pk, xsk)

	s.gsSessionKeys.Store(req.Gid, ssk)
	s.log.Info().Str("gid", abbreviate(req.Gid)).Msg("gs authenticated")
	return &GsAuthResponse{}, nil
}

// GetUavList encrypts the current UAV directory under the GS's derived
// session key and returns the ciphertext.
func (s *Service) GetUavList(gid string) ([]byte, error) {
	v, ok := s.gsSessionKeys.Load(gid)
	if !ok {
		return nil, fmt.Errorf("%w: no session for gid %s", protoerr.ErrUnknownGid, gid)
	}
	ssk := v.(pairing.G2)
	key := pairing.AESKeyFromG2(ssk)

	var entries []GsAuthResponseStruct
	s.directory.Range(func(_, val any) bool {
		entries = append(entries, s.transmuteUavRecord(val.(UavRecord)))
		return true
	})

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal uav directory: %w", err)
	}
	ct, err := aesgcm.Encrypt(key, data)
	if err != nil {
		return nil, fmt.Errorf("encrypt uav directory: %w", err)
	}
	return ct, nil
}

func (s *Service) transmuteUavRecord(rec UavRecord) GsAuthResponseStruct {
	rBytes, _ := hex.DecodeString(rec.R)
	rScalar := pairing.ScalarFromWide(pairing.PadRight64(rBytes))

	var skR pairing.Scalar
	skR.Mul(&s.cfg.Sk, &rScalar)
	g1, _ := pairing.Generators()
	z := pairing.MulG1(g1, skR)

	return GsAuthResponseStruct{
		Uid: rec.Uid,
		PkU: pairing.HexG2(rec.Pk),
		C:   rec.C,
		Z:   pairing.HexG1(z),
		P:   rec.P.String(),
	}
}

// RegisterUavPhase1 issues a fresh uid/keypair/PUF-challenge and records a
// pending entry awaiting phase 2.
func (s *Service) RegisterUavPhase1() (*UavRegisterResponse1, error) {
	uid, err := s.reserveUid()
	if err != nil {
		return nil, err
	}

	sk, err := pairing.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("register uav phase1: %w", err)
	}
	_, g2 := pairing.Generators()
	pk := pairing.MulG2(g2, sk)

	var challenge [PufChallengeLen]byte
	if _, err := rand.Read(challenge[:]); err != nil {
		return nil, fmt.Errorf("register uav phase1: draw puf challenge: %w", err)
	}
	c := hex.EncodeToString(challenge[:])

	s.pending.Store(uid, pendingUav{Uid: uid, Sk: sk, Pk: pk, C: c, insertedAt: time.Now()})

	return &UavRegisterResponse1{
		Uid:          uid,
		PufChallenge: c,
		UavSk:        pairing.ScalarToHex(sk),
		UavPubkey:    pairing.HexG2(pk),
	}, nil
}

// reserveUid draws random uids until one collides with neither the pending
// nor committed maps; collisions retry internally, and ErrCollision is
// returned only after maxUidAttempts consecutive collisions.
func (s *Service) reserveUid() (string, error) {
	for attempt := 0; attempt < maxUidAttempts; attempt++ {
		var raw [32]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return "", fmt.Errorf("draw uid: %w", err)
		}
		uid := hex.EncodeToString(raw[:])
		if _, exists := s.pending.Load(uid); exists {
			continue
		}
		if _, exists := s.directory.Load(uid); exists {
			continue
		}
		return uid, nil
	}
	return "", fmt.Errorf("%w: exhausted %d attempts", protoerr.ErrCollision, maxUidAttempts)
}

// RegisterUavPhase2 finalizes a pending registration once the UAV returns
// its PUF response, deriving p = H_prime(r‖uid) and committing the record.
func (s *Service) RegisterUavPhase2(req UavRegisterRequest2) (*UavRegisterResponse2, error) {
	v, ok := s.pending.LoadAndDelete(req.Uid)
	if !ok {
		return nil, fmt.Errorf("%w: uid %s", protoerr.ErrUnknownUid, req.Uid)
	}
	pend := v.(pendingUav)

	p, err := primes.HashToPrime([]byte(req.PufResponse + req.Uid))
	if err != nil {
		return nil, fmt.Errorf("register uav phase2: %w", err)
	}

	s.directory.Store(pend.Uid, UavRecord{
		Uid: pend.Uid,
		Sk:  pend.Sk,
		Pk:  pend.Pk,
		C:   pend.C,
		R:   req.PufResponse,
		P:   p,
	})
	s.log.Info().Str("uid", abbreviate(pend.Uid)).Msg("uav registered")
	return &UavRegisterResponse2{}, nil
}

// GCStalePending drops pending phase-1 entries older than pendingGC. A UAV
// that abandons registration mid-flight (crash, lost connection) leaves a
// Pending entry with no back-edge; this reclaims it so a later phase-1 for
// the same uid-collision space doesn't accumulate garbage forever.
func (s *Service) GCStalePending() int {
	cutoff := time.Now().Add(-pendingGC)
	n := 0
	s.pending.Range(func(key, val any) bool {
		if val.(pendingUav).insertedAt.Before(cutoff) {
			s.pending.Delete(key)
			n++
		}
		return true
	})
	return n
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func abbreviate(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + ".." + s[len(s)-4:]
}
