package uav

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/52funny/egcda-uavs/crypto/pairing"
	"github.com/52funny/egcda-uavs/gs"
	"github.com/52funny/egcda-uavs/ta"
	"github.com/52funny/egcda-uavs/wire"
)

func testLog() zerolog.Logger {
	return zerolog.New(os.Stderr)
}

// startFakePuf runs a PUF adapter stub: whatever challenge it receives, it
// replies with a deterministic hex response derived from the challenge
// itself, so both the UAV and the test can independently recompute it.
func startFakePuf(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 256)
				n, err := conn.Read(buf)
				if err != nil {
					return
				}
				conn.Write([]byte(fakePufResponse(string(buf[:n]))))
			}()
		}
	}()
	return ln.Addr().String()
}

// fakePufResponse derives a deterministic stand-in PUF response of exactly
// PufChallengeLen bytes, hex-encoded.
func fakePufResponse(challenge string) string {
	base := []byte("responsebyte")
	for i := 0; i < len(base) && i < len(challenge); i++ {
		base[i] ^= challenge[i]
	}
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(base)*2)
	for i, c := range base {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

func startTaServer(t *testing.T) string {
	t.Helper()
	cfg, err := ta.NewConfig()
	require.NoError(t, err)
	svc := ta.NewService(cfg, testLog())

	srv := wire.NewServer(testLog(), 5*time.Second)
	ta.RegisterHandlers(srv, svc)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go srv.Serve(ln)
	return ln.Addr().String()
}

func startGsServer(t *testing.T, pkT pairing.G2, entries []gs.DirectoryEntry) string {
	t.Helper()
	cfg, err := gs.NewConfig("gs-test")
	require.NoError(t, err)
	svc := gs.NewService(cfg, pkT, testLog())
	require.NoError(t, svc.InstallDirectory(entries))

	srv := wire.NewServer(testLog(), 5*time.Second)
	gs.RegisterHandlers(srv, svc)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go srv.Serve(ln)
	return ln.Addr().String()
}

func TestRegisterRoundTrip(t *testing.T) {
	taAddr := startTaServer(t)
	pufAddr := startFakePuf(t)
	puf := NewPufClient(pufAddr, time.Second)

	cfg, err := Register(taAddr, time.Second, puf)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Uid)
}

func TestRegisterThenSaveAndLoadConfig(t *testing.T) {
	taAddr := startTaServer(t)
	pufAddr := startFakePuf(t)
	puf := NewPufClient(pufAddr, time.Second)

	cfg, err := Register(taAddr, time.Second, puf)
	require.NoError(t, err)

	path := t.TempDir() + "/uav.json"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Uid, loaded.Uid)
	require.Equal(t, pairing.HexG2(cfg.Pk), pairing.HexG2(loaded.Pk))
	require.Equal(t, pairing.ScalarToHex(cfg.Sk), pairing.ScalarToHex(loaded.Sk))
}

func TestLoadConfigMissingFileReturnsError(t *testing.T) {
	_, err := LoadConfig(t.TempDir() + "/missing.json")
	require.Error(t, err)
}

// buildEndToEnd registers one UAV with the TA, has a GS authenticate to the
// TA and pull the (one-entry) directory, and stands up a GS server the UAV
// can authenticate against and recover a group key from.
func buildEndToEnd(t *testing.T) (gsAddr, pufAddr string, uavCfg Config) {
	t.Helper()
	taAddr := startTaServer(t)
	pufAddr = startFakePuf(t)
	puf := NewPufClient(pufAddr, time.Second)

	var err error
	uavCfg, err = Register(taAddr, time.Second, puf)
	require.NoError(t, err)

	gsCfg, err := gs.NewConfig("gs-e2e")
	require.NoError(t, err)

	taClient, err := gs.DialTa(taAddr, time.Second)
	require.NoError(t, err)
	defer taClient.Close()

	require.NoError(t, taClient.Register(gsCfg))
	pkT, key, err := taClient.Authenticate(gsCfg)
	require.NoError(t, err)

	entries, err := taClient.FetchDirectory(gsCfg.Gid, key)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	gsAddr = startGsServer(t, pkT, entries)
	return gsAddr, pufAddr, uavCfg
}

func TestAuthenticateSingleUavEndToEnd(t *testing.T) {
	gsAddr, pufAddr, uavCfg := buildEndToEnd(t)
	puf := NewPufClient(pufAddr, time.Second)

	require.NoError(t, Authenticate(gsAddr, time.Second, puf, uavCfg))
}

func TestListUavIdsPutsSelfFirst(t *testing.T) {
	gsAddr, _, uavCfg := buildEndToEnd(t)

	ids, err := ListUavIds(gsAddr, time.Second, uavCfg)
	require.NoError(t, err)
	require.Equal(t, []string{uavCfg.Uid}, ids)
}

func TestRecoverGroupKeyEndToEnd(t *testing.T) {
	gsAddr, pufAddr, uavCfg := buildEndToEnd(t)
	puf := NewPufClient(pufAddr, time.Second)

	require.NoError(t, Authenticate(gsAddr, time.Second, puf, uavCfg))

	kd, err := RecoverGroupKey(gsAddr, time.Second, puf, uavCfg, []string{uavCfg.Uid})
	require.NoError(t, err)
	require.NotNil(t, kd)
}
