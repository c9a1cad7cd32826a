package ta

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/52funny/egcda-uavs/crypto/aesgcm"
	"github.com/52funny/egcda-uavs/crypto/pairing"
	"github.com/52funny/egcda-uavs/crypto/primes"
	"github.com/52funny/egcda-uavs/protoerr"
)

func testLog() zerolog.Logger {
	return zerolog.New(os.Stderr)
}

func gsKeypair(t *testing.T, sk int64) (pairing.Scalar, pairing.G2) {
	t.Helper()
	s := pairing.ScalarFromWide(pairing.BE8(sk))
	_, g2 := pairing.Generators()
	return s, pairing.MulG2(g2, s)
}

func TestRegisterGsHappyPath(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	svc := NewService(cfg, testLog())

	skG, pkG := gsKeypair(t, 2)
	_ = skG
	gid := "41414141414141414141414141414141414141414141414141414141414141" // arbitrary fixture id
	req := GsRegisterRequest{Gid: gid, GsPubkey: pairing.HexG2(pkG)}

	require.NoError(t, svc.RegisterGs(req))

	// idempotent re-registration (last writer wins)
	require.NoError(t, svc.RegisterGs(req))

	v, ok := svc.gsRecords.Load(gid)
	require.True(t, ok)
	require.Equal(t, pkG, v.(GsRecord).Pk)
}

func TestAuthenticateGsAcceptsValidSignature(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	svc := NewService(cfg, testLog())

	skG, pkG := gsKeypair(t, 2)
	gid := "A"
	require.NoError(t, svc.RegisterGs(GsRegisterRequest{Gid: gid, GsPubkey: pairing.HexG2(pkG)}))

	now := time.Unix(1_000_000_000, 0)
	transcript := append([]byte(gid), pairing.BE8(now.Unix())...)
	tau, err := pairing.HashToG1(transcript)
	require.NoError(t, err)
	sigma := pairing.MulG1(tau, skG)

	req := GsAuthRequest{Gid: gid, TG: now.Unix(), Sigma: pairing.HexG1(sigma)}
	resp, err := svc.AuthenticateGs(req, now)
	require.NoError(t, err)
	require.NotNil(t, resp)

	_, ok := svc.gsSessionKeys.Load(gid)
	require.True(t, ok)
}

func TestAuthenticateGsRejectsStaleTimestamp(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	svc := NewService(cfg, testLog())

	skG, pkG := gsKeypair(t, 2)
	gid := "A"
	require.NoError(t, svc.RegisterGs(GsRegisterRequest{Gid: gid, GsPubkey: pairing.HexG2(pkG)}))

	staleT := int64(1_000_000_000 - 11)
	transcript := append([]byte(gid), pairing.BE8(staleT)...)
	tau, err := pairing.HashToG1(transcript)
	require.NoError(t, err)
	sigma := pairing.MulG1(tau, skG)

	now := time.Unix(1_000_000_000, 0)
	req := GsAuthRequest{Gid: gid, TG: staleT, Sigma: pairing.HexG1(sigma)}
	_, err = svc.AuthenticateGs(req, now)
	require.ErrorIs(t, err, protoerr.ErrStale)

	_, ok := svc.gsSessionKeys.Load(gid)
	require.False(t, ok, "no session key should be installed on a rejected auth")
}

func TestAuthenticateGsRejectsTamperedSignature(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	svc := NewService(cfg, testLog())

	skG, pkG := gsKeypair(t, 2)
	gid := "A"
	require.NoError(t, svc.RegisterGs(GsRegisterRequest{Gid: gid, GsPubkey: pairing.HexG2(pkG)}))

	now := time.Unix(1_000_000_000, 0)
	transcript := append([]byte(gid), pairing.BE8(now.Unix())...)
	tau, err := pairing.HashToG1(transcript)
	require.NoError(t, err)
	sigma := pairing.MulG1(tau, skG)
	sigmaBytes := pairing.CompressG1(sigma)
	sigmaBytes[0] ^= 0xFF

	req := GsAuthRequest{Gid: gid, TG: now.Unix(), Sigma: hex.EncodeToString(sigmaBytes)}
	_, err = svc.AuthenticateGs(req, now)
	require.Error(t, err)
}

func TestAuthenticateGsRejectsUnknownGid(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	svc := NewService(cfg, testLog())

	now := time.Unix(1_000_000_000, 0)
	req := GsAuthRequest{Gid: "ghost", TG: now.Unix(), Sigma: "00"}
	_, err = svc.AuthenticateGs(req, now)
	require.ErrorIs(t, err, protoerr.ErrUnknownGid)
}

func TestUavRegistrationRoundTrip(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	svc := NewService(cfg, testLog())

	resp1, err := svc.RegisterUavPhase1()
	require.NoError(t, err)
	require.NotEmpty(t, resp1.Uid)
	require.Len(t, resp1.PufChallenge, PufChallengeLen*2)

	pufResponse := "deadbeefcafe000102030405" // fixed 12-byte fixture PUF response, hex
	resp2, err := svc.RegisterUavPhase2(UavRegisterRequest2{Uid: resp1.Uid, PufResponse: pufResponse})
	require.NoError(t, err)
	require.NotNil(t, resp2)

	v, ok := svc.directory.Load(resp1.Uid)
	require.True(t, ok)
	rec := v.(UavRecord)

	wantP, err := primes.HashToPrime([]byte(pufResponse + resp1.Uid))
	require.NoError(t, err)
	require.Equal(t, 0, rec.P.Cmp(wantP))

	// pending entry is consumed
	_, stillPending := svc.pending.Load(resp1.Uid)
	require.False(t, stillPending)
}

func TestUavRegisterPhase2RejectsUnknownUid(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	svc := NewService(cfg, testLog())

	_, err = svc.RegisterUavPhase2(UavRegisterRequest2{Uid: "ghost", PufResponse: "x"})
	require.ErrorIs(t, err, protoerr.ErrUnknownUid)
}

func TestGetUavListDerivesMatchingKeyAndDecrypts(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	svc := NewService(cfg, testLog())

	skG, pkG := gsKeypair(t, 2)
	gid := "A"
	require.NoError(t, svc.RegisterGs(GsRegisterRequest{Gid: gid, GsPubkey: pairing.HexG2(pkG)}))

	resp1, err := svc.RegisterUavPhase1()
	require.NoError(t, err)
	_, err = svc.RegisterUavPhase2(UavRegisterRequest2{Uid: resp1.Uid, PufResponse: "deadbeefcafe000102030405"})
	require.NoError(t, err)

	now := time.Unix(1_000_000_000, 0)
	transcript := append([]byte(gid), pairing.BE8(now.Unix())...)
	tau, err := pairing.HashToG1(transcript)
	require.NoError(t, err)
	sigma := pairing.MulG1(tau, skG)
	_, err = svc.AuthenticateGs(GsAuthRequest{Gid: gid, TG: now.Unix(), Sigma: pairing.HexG1(sigma)}, now)
	require.NoError(t, err)

	// GS-side derivation of the same ssk.
	x := pairing.ScalarFromBlake2b(pairing.CompressG1(tau))
	var xSkG pairing.Scalar
	xSkG.Mul(&x, &skG)
	pkT, err := pairing.G2FromHex(svc.GetTaPubkey())
	require.NoError(t, err)
	gsSideSsk := pairing.MulG2(pkT, xSkG)
	key := pairing.AESKeyFromG2(gsSideSsk)

	ct, err := svc.GetUavList(gid)
	require.NoError(t, err)

	pt, err := aesgcm.Decrypt(key, ct)
	require.NoError(t, err)

	var entries []GsAuthResponseStruct
	require.NoError(t, json.Unmarshal(pt, &entries))
	require.Len(t, entries, 1)
	require.Equal(t, resp1.Uid, entries[0].Uid)
}

func TestReserveUidDoesNotCollide(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	svc := NewService(cfg, testLog())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		uid, err := svc.reserveUid()
		require.NoError(t, err)
		require.False(t, seen[uid])
		seen[uid] = true
		svc.pending.Store(uid, pendingUav{Uid: uid, insertedAt: time.Now()})
	}
}
