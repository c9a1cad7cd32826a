package gs

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/52funny/egcda-uavs/crypto/pairing"
	"github.com/52funny/egcda-uavs/crypto/primes"
	"github.com/52funny/egcda-uavs/protoerr"
)

// Service is a ground station's protocol state: its own keypair, a local
// snapshot of the UAV directory, and the fake-prime padding pool. The
// snapshot is replaced atomically on each successful directory fetch so
// concurrent readers never observe a torn update.
type Service struct {
	cfg Config
	pkT pairing.G2
	log zerolog.Logger

	snapshot atomic.Pointer[map[string]DirectoryEntry]
	fakePool fakePrimePool
}

// NewService builds a Service. pkT is the TA's public key, needed to verify
// the e(x, pk_T) term of every UAV authentication equation.
func NewService(cfg Config, pkT pairing.G2, log zerolog.Logger) *Service {
	s := &Service{cfg: cfg, pkT: pkT, log: log}
	empty := map[string]DirectoryEntry{}
	s.snapshot.Store(&empty)
	return s
}

// GetGsPubkey returns the hex-encoded GS public key.
func (s *Service) GetGsPubkey() string {
	return pairing.HexG2(s.cfg.Pk)
}

func (s *Service) lookup(uid string) (DirectoryEntry, bool) {
	m := *s.snapshot.Load()
	e, ok := m[uid]
	return e, ok
}

// InstallDirectory atomically replaces the local snapshot with entries and
// lazily extends the fake-prime pool up to the new directory's size.
func (s *Service) InstallDirectory(entries []DirectoryEntry) error {
	m := make(map[string]DirectoryEntry, len(entries))
	real := make([]*big.Int, 0, len(entries))
	for _, e := range entries {
		m[e.Uid] = e
		real = append(real, e.P)
	}
	s.snapshot.Store(&m)
	if err := s.fakePool.extendTo(len(m), real); err != nil {
		return fmt.Errorf("install directory: %w", err)
	}
	s.log.Info().Int("count", len(m)).Msg("uav directory installed")
	return nil
}

// AuthenticateUavPhase1 returns the stored PUF challenge for uid.
func (s *Service) AuthenticateUavPhase1(req UavAuthRequest1) (*UavAuthResponse1, error) {
	e, ok := s.lookup(req.Uid)
	if !ok {
		return nil, fmt.Errorf("%w: uid %s", protoerr.ErrUnknownUid, req.Uid)
	}
	return &UavAuthResponse1{PufChallenge: e.C}, nil
}

func buildUavTranscript(c, xHex, uid string, tU int64) []byte {
	buf := make([]byte, 0, len(c)+len(xHex)+len(uid)+8)
	buf = append(buf, c...)
	buf = append(buf, xHex...)
	buf = append(buf, uid...)
	buf = append(buf, pairing.BE8(tU)...)
	return buf
}

// AuthenticateUavPhase2 verifies a single UAV's proof against the stored
// directory entry: e(sigma + z, g2) must equal e(h_i, pk_U) * e(x, pk_T).
func (s *Service) AuthenticateUavPhase2(req UavAuthRequest2, now time.Time) (*UavAuthResponse2, error) {
	if absInt64(now.Unix()-req.TU) > TMax {
		return nil, fmt.Errorf("%w: uid %s t_u=%d", protoerr.ErrStale, req.Uid, req.TU)
	}
	e, ok := s.lookup(req.Uid)
	if !ok {
		return nil, fmt.Errorf("%w: uid %s", protoerr.ErrUnknownUid, req.Uid)
	}

	sigma, err := pairing.G1FromHex(req.Sigma)
	if err != nil {
		return nil, fmt.Errorf("authenticate uav %s: %w", req.Uid, err)
	}
	xPoint, err := pairing.G1FromHex(req.X)
	if err != nil {
		return nil, fmt.Errorf("authenticate uav %s: %w", req.Uid, err)
	}

	hI, err := pairing.HashToG1(buildUavTranscript(e.C, req.X, req.Uid, req.TU))
	if err != nil {
		return nil, fmt.Errorf("authenticate uav %s: %w", req.Uid, err)
	}

	_, g2 := pairing.Generators()
	lhs := pairing.AddG1(sigma, e.Z)
	ok2, err := pairing.PairingProductCheck(lhs, g2, []pairing.G1{hI, xPoint}, []pairing.G2{e.PkU, s.pkT})
	if err != nil {
		return nil, fmt.Errorf("authenticate uav %s: %w", req.Uid, err)
	}
	if !ok2 {
		return nil, fmt.Errorf("%w: uid %s", protoerr.ErrBadSig, req.Uid)
	}
	return &UavAuthResponse2{}, nil
}

// BatchAuthenticateUavsPhase1 returns one challenge per requested uid.
func (s *Service) BatchAuthenticateUavsPhase1(req BatchUavAuthRequest1) (*BatchUavAuthResponse1, error) {
	challenges := make([]string, len(req.Uids))
	for i, uid := range req.Uids {
		e, ok := s.lookup(uid)
		if !ok {
			return nil, fmt.Errorf("%w: uid %s", protoerr.ErrUnknownUid, uid)
		}
		challenges[i] = e.C
	}
	return &BatchUavAuthResponse1{PufChallenges: challenges}, nil
}

// BatchAuthenticateUavsPhase2 verifies the aggregate pairing equation:
// every request must independently pass the staleness check, and the batch
// accepts iff it would equal the AND of all individual verifications.
func (s *Service) BatchAuthenticateUavsPhase2(req BatchUavAuthRequest2, now time.Time) (*BatchUavAuthResponse2, error) {
	if len(req.Requests) == 0 {
		return nil, fmt.Errorf("batch authenticate: empty request")
	}

	sigmas := make([]pairing.G1, 0, len(req.Requests))
	zs := make([]pairing.G1, 0, len(req.Requests))
	hs := make([]pairing.G1, 0, len(req.Requests))
	xs := make([]pairing.G1, 0, len(req.Requests))
	pkUs := make([]pairing.G2, 0, len(req.Requests))

	for _, r := range req.Requests {
		if absInt64(now.Unix()-r.TU) > TMax {
			return nil, fmt.Errorf("%w: uid %s t_u=%d", protoerr.ErrStale, r.Uid, r.TU)
		}
		e, ok := s.lookup(r.Uid)
		if !ok {
			return nil, fmt.Errorf("%w: uid %s", protoerr.ErrUnknownUid, r.Uid)
		}

		sigma, err := pairing.G1FromHex(r.Sigma)
		if err != nil {
			return nil, fmt.Errorf("batch authenticate %s: %w", r.Uid, err)
		}
		xPoint, err := pairing.G1FromHex(r.X)
		if err != nil {
			return nil, fmt.Errorf("batch authenticate %s: %w", r.Uid, err)
		}
		hI, err := pairing.HashToG1(buildUavTranscript(e.C, r.X, r.Uid, r.TU))
		if err != nil {
			return nil, fmt.Errorf("batch authenticate %s: %w", r.Uid, err)
		}

		sigmas = append(sigmas, sigma)
		zs = append(zs, e.Z)
		hs = append(hs, hI)
		xs = append(xs, xPoint)
		pkUs = append(pkUs, e.PkU)
	}

	lhs := pairing.AddG1(pairing.SumG1(sigmas), pairing.SumG1(zs))

	rhsG1 := append(append([]pairing.G1{}, hs...), xs...)
	rhsG2 := append(pkUs, repeatG2(s.pkT, len(xs))...)

	_, g2 := pairing.Generators()
	ok, err := pairing.PairingProductCheck(lhs, g2, rhsG1, rhsG2)
	if err != nil {
		return nil, fmt.Errorf("batch authenticate: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: batch authenticate", protoerr.ErrBadSig)
	}
	return &BatchUavAuthResponse2{}, nil
}

func repeatG2(p pairing.G2, n int) []pairing.G2 {
	out := make([]pairing.G2, n)
	for i := range out {
		out[i] = p
	}
	return out
}

// GetAllUavId returns the full directory's uids, selfUid first (if present)
// so a UAV can build its own "everyone but me" candidate list in one round trip.
func (s *Service) GetAllUavId(selfUid string) []string {
	m := *s.snapshot.Load()
	rest := make([]string, 0, len(m))
	_, hasSelf := m[selfUid]
	for uid := range m {
		if uid == selfUid {
			continue
		}
		rest = append(rest, uid)
	}
	sort.Strings(rest)

	if !hasSelf {
		return rest
	}
	return append([]string{selfUid}, rest...)
}

// CommunicateUavs builds the CRT group-key combinator mu for the requested
// subset, padded with fake primes up to the directory size for subset
// privacy.
func (s *Service) CommunicateUavs(req UavCommRequest) (*UavCommResponse, error) {
	m := *s.snapshot.Load()

	realPrimes := make([]*big.Int, 0, len(req.UidK))
	challenges := make([]string, 0, len(req.UidK))
	for _, uid := range req.UidK {
		e, ok := m[uid]
		if !ok {
			return nil, fmt.Errorf("%w: uid %s", protoerr.ErrUnknownUid, uid)
		}
		realPrimes = append(realPrimes, e.P)
		challenges = append(challenges, e.C)
	}

	kd, err := randomKd128()
	if err != nil {
		return nil, fmt.Errorf("communicate uavs: %w", err)
	}

	padCount := len(m) - len(realPrimes)
	if padCount < 0 {
		padCount = 0
	}
	fakes := s.fakePool.sample(padCount)

	eta, err := primes.CRTCombinePadded(realPrimes, fakes)
	if err != nil {
		return nil, fmt.Errorf("communicate uavs: %w", err)
	}

	mu := new(big.Int).Mul(kd, eta)
	return &UavCommResponse{Mu: mu.Text(16), CM: challenges}, nil
}

func randomKd128() (*big.Int, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("draw k_d: %w", err)
	}
	return new(big.Int).SetBytes(buf), nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
