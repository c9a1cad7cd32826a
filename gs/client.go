package gs

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/52funny/egcda-uavs/crypto/aesgcm"
	"github.com/52funny/egcda-uavs/crypto/pairing"
	"github.com/52funny/egcda-uavs/ta"
	"github.com/52funny/egcda-uavs/wire"
)

// TaClient is the GS-side counterpart of the TA's RPC surface: registration,
// authentication, and encrypted directory fetch.
type TaClient struct {
	conn *wire.Client
	ts   *TimestampIssuer
}

// DialTa opens a connection to the TA at addr.
func DialTa(addr string, timeout time.Duration) (*TaClient, error) {
	c, err := wire.Dial(addr, timeout)
	if err != nil {
		return nil, err
	}
	return &TaClient{conn: c, ts: NewTimestampIssuer(MinIssueInterval, nil)}, nil
}

// Close closes the underlying connection.
func (c *TaClient) Close() error {
	return c.conn.Close()
}

// GetTaPubkey fetches and decodes the TA's public key.
func (c *TaClient) GetTaPubkey() (pairing.G2, error) {
	var hexPk string
	if err := c.conn.Call("get_ta_pubkey", struct{}{}, &hexPk); err != nil {
		return pairing.G2{}, fmt.Errorf("get_ta_pubkey: %w", err)
	}
	return pairing.G2FromHex(hexPk)
}

// Register registers cfg's (gid, public key) with the TA.
func (c *TaClient) Register(cfg Config) error {
	req := ta.GsRegisterRequest{Gid: cfg.Gid, GsPubkey: pairing.HexG2(cfg.Pk)}
	if err := c.conn.Call("register_gs", req, nil); err != nil {
		return fmt.Errorf("register_gs: %w", err)
	}
	return nil
}

// Authenticate runs the GS→TA authentication handshake and returns the TA's public
// key plus the derived AES key for the directory fetch that follows.
func (c *TaClient) Authenticate(cfg Config) (pairing.G2, [16]byte, error) {
	pkT, err := c.GetTaPubkey()
	if err != nil {
		return pairing.G2{}, [16]byte{}, err
	}

	now := c.ts.Issue()
	transcript := append([]byte(cfg.Gid), pairing.BE8(now)...)
	tau, err := pairing.HashToG1(transcript)
	if err != nil {
		return pairing.G2{}, [16]byte{}, fmt.Errorf("authenticate: %w", err)
	}
	sigma := pairing.MulG1(tau, cfg.Sk)

	req := ta.GsAuthRequest{Gid: cfg.Gid, TG: now, Sigma: pairing.HexG1(sigma)}
	var resp ta.GsAuthResponse
	if err := c.conn.Call("authenticate_gs", req, &resp); err != nil {
		return pairing.G2{}, [16]byte{}, fmt.Errorf("authenticate_gs: %w", err)
	}

	x := pairing.ScalarFromBlake2b(pairing.CompressG1(tau))
	var xSk pairing.Scalar
	xSk.Mul(&x, &cfg.Sk)
	ssk := pairing.MulG2(pkT, xSk)
	return pkT, pairing.AESKeyFromG2(ssk), nil
}

// FetchDirectory retrieves and decrypts the UAV directory under key, the
// AES key Authenticate derived for this session.
func (c *TaClient) FetchDirectory(gid string, key [16]byte) ([]DirectoryEntry, error) {
	var ctHex wire.HexBytes
	if err := c.conn.Call("get_uav_list", gid, &ctHex); err != nil {
		return nil, fmt.Errorf("get_uav_list: %w", err)
	}

	pt, err := aesgcm.Decrypt(key, ctHex)
	if err != nil {
		return nil, fmt.Errorf("decrypt uav directory: %w", err)
	}

	var records []ta.GsAuthResponseStruct
	if err := json.Unmarshal(pt, &records); err != nil {
		return nil, fmt.Errorf("unmarshal uav directory: %w", err)
	}

	entries := make([]DirectoryEntry, 0, len(records))
	for _, r := range records {
		pkU, err := pairing.G2FromHex(r.PkU)
		if err != nil {
			return nil, fmt.Errorf("directory entry %s: %w", r.Uid, err)
		}
		z, err := pairing.G1FromHex(r.Z)
		if err != nil {
			return nil, fmt.Errorf("directory entry %s: %w", r.Uid, err)
		}
		p, ok := new(big.Int).SetString(r.P, 10)
		if !ok {
			return nil, fmt.Errorf("directory entry %s: malformed prime %q", r.Uid, r.P)
		}
		entries = append(entries, DirectoryEntry{Uid: r.Uid, PkU: pkU, C: r.C, Z: z, P: p})
	}
	return entries, nil
}
