package uav

import (
	"fmt"
	"time"

	"github.com/52funny/egcda-uavs/crypto/pairing"
	"github.com/52funny/egcda-uavs/ta"
	"github.com/52funny/egcda-uavs/wire"
)

// Register runs the two-phase registration against the TA at taAddr
// and returns the UAV's freshly issued Config. puf resolves the PUF
// challenge the TA hands back in phase 1.
func Register(taAddr string, timeout time.Duration, puf *PufClient) (Config, error) {
	client, err := wire.Dial(taAddr, timeout)
	if err != nil {
		return Config{}, fmt.Errorf("register: %w", err)
	}
	defer client.Close()

	var resp1 ta.UavRegisterResponse1
	if err := client.Call("register_uav_phase1", ta.UavRegisterRequest1{}, &resp1); err != nil {
		return Config{}, fmt.Errorf("register_uav_phase1: %w", err)
	}

	pufResponse, err := puf.Calculate(resp1.PufChallenge)
	if err != nil {
		return Config{}, fmt.Errorf("register: %w", err)
	}

	sk, err := pairing.ScalarFromHex(resp1.UavSk)
	if err != nil {
		return Config{}, fmt.Errorf("register: %w", err)
	}
	pk, err := pairing.G2FromHex(resp1.UavPubkey)
	if err != nil {
		return Config{}, fmt.Errorf("register: %w", err)
	}

	req2 := ta.UavRegisterRequest2{Uid: resp1.Uid, PufResponse: pufResponse}
	var resp2 ta.UavRegisterResponse2
	if err := client.Call("register_uav_phase2", req2, &resp2); err != nil {
		return Config{}, fmt.Errorf("register_uav_phase2: %w", err)
	}

	return Config{Uid: resp1.Uid, Sk: sk, Pk: pk}, nil
}
