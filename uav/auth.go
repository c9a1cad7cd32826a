package uav

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/52funny/egcda-uavs/crypto/pairing"
	"github.com/52funny/egcda-uavs/gs"
	"github.com/52funny/egcda-uavs/wire"
)

// Authenticate runs the single-UAV authentication handshake against the ground
// station at gsAddr.
func Authenticate(gsAddr string, timeout time.Duration, puf *PufClient, cfg Config) error {
	client, err := wire.Dial(gsAddr, timeout)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	defer client.Close()

	var resp1 gs.UavAuthResponse1
	if err := client.Call("authenticate_uav_phase1", gs.UavAuthRequest1{Uid: cfg.Uid}, &resp1); err != nil {
		return fmt.Errorf("authenticate_uav_phase1: %w", err)
	}

	req2, err := proveChallenge(puf, cfg, resp1.PufChallenge, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	var resp2 gs.UavAuthResponse2
	if err := client.Call("authenticate_uav_phase2", req2, &resp2); err != nil {
		return fmt.Errorf("authenticate_uav_phase2: %w", err)
	}
	return nil
}

// BatchAuthenticate runs the batch authentication handshake for every uav in uavs
// against a single ground station connection, driving the one-message
// aggregate verification path (used by cmd/uav's --all-auth-num mode).
func BatchAuthenticate(gsAddr string, timeout time.Duration, puf *PufClient, uavs []Config) error {
	client, err := wire.Dial(gsAddr, timeout)
	if err != nil {
		return fmt.Errorf("batch authenticate: %w", err)
	}
	defer client.Close()

	uids := make([]string, len(uavs))
	for i, u := range uavs {
		uids[i] = u.Uid
	}

	var resp1 gs.BatchUavAuthResponse1
	if err := client.Call("batch_authenticate_uavs_phase1", gs.BatchUavAuthRequest1{Uids: uids}, &resp1); err != nil {
		return fmt.Errorf("batch_authenticate_uavs_phase1: %w", err)
	}
	if len(resp1.PufChallenges) != len(uavs) {
		return fmt.Errorf("batch authenticate: got %d challenges for %d uavs", len(resp1.PufChallenges), len(uavs))
	}

	now := time.Now().Unix()
	reqs := make([]gs.UavAuthRequest2, len(uavs))
	for i, u := range uavs {
		req, err := proveChallenge(puf, u, resp1.PufChallenges[i], now)
		if err != nil {
			return fmt.Errorf("batch authenticate uav %s: %w", u.Uid, err)
		}
		reqs[i] = req
	}

	var resp2 gs.BatchUavAuthResponse2
	if err := client.Call("batch_authenticate_uavs_phase2", gs.BatchUavAuthRequest2{Requests: reqs}, &resp2); err != nil {
		return fmt.Errorf("batch_authenticate_uavs_phase2: %w", err)
	}
	return nil
}

// proveChallenge resolves challenge via the PUF and builds the
// transcript proof h_i = H(c || x || uid || t_u), sigma = h_i * sk.
func proveChallenge(puf *PufClient, cfg Config, challenge string, tU int64) (gs.UavAuthRequest2, error) {
	pufResponse, err := puf.Calculate(challenge)
	if err != nil {
		return gs.UavAuthRequest2{}, err
	}
	rBytes, err := hex.DecodeString(pufResponse)
	if err != nil {
		return gs.UavAuthRequest2{}, fmt.Errorf("decode puf response: %w", err)
	}

	rScalar := pairing.ScalarFromWide(pairing.PadRight64(rBytes))
	g1, _ := pairing.Generators()
	xPoint := pairing.MulG1(g1, rScalar)
	xHex := pairing.HexG1(xPoint)

	buf := make([]byte, 0, len(challenge)+len(xHex)+len(cfg.Uid)+8)
	buf = append(buf, challenge...)
	buf = append(buf, xHex...)
	buf = append(buf, cfg.Uid...)
	buf = append(buf, pairing.BE8(tU)...)

	hI, err := pairing.HashToG1(buf)
	if err != nil {
		return gs.UavAuthRequest2{}, err
	}
	sigma := pairing.MulG1(hI, cfg.Sk)

	return gs.UavAuthRequest2{Uid: cfg.Uid, Sigma: pairing.HexG1(sigma), X: xHex, TU: tU}, nil
}
