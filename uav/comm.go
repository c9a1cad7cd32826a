package uav

import (
	"fmt"
	"math/big"
	"time"

	"github.com/52funny/egcda-uavs/crypto/primes"
	"github.com/52funny/egcda-uavs/gs"
	"github.com/52funny/egcda-uavs/wire"
)

// ListUavIds asks the ground station for every uid in its directory. The GS
// returns the caller's own uid first when present, so the result can be fed
// straight into RecoverGroupKey as the group subset.
func ListUavIds(gsAddr string, timeout time.Duration, cfg Config) ([]string, error) {
	client, err := wire.Dial(gsAddr, timeout)
	if err != nil {
		return nil, fmt.Errorf("list uav ids: %w", err)
	}
	defer client.Close()

	var ids []string
	if err := client.Call("get_all_uav_id", cfg.Uid, &ids); err != nil {
		return nil, fmt.Errorf("get_all_uav_id: %w", err)
	}
	return ids, nil
}

// RecoverGroupKey runs the group-key recovery step: it asks the ground station for
// the CRT combinator over uidK (a subset the caller belongs to, with itself
// first), resolves its own PUF response against the first returned
// challenge, rebuilds its own CRT modulus p, and reduces mu mod p to
// recover the shared key k_d.
func RecoverGroupKey(gsAddr string, timeout time.Duration, puf *PufClient, cfg Config, uidK []string) (*big.Int, error) {
	client, err := wire.Dial(gsAddr, timeout)
	if err != nil {
		return nil, fmt.Errorf("recover group key: %w", err)
	}
	defer client.Close()

	var resp gs.UavCommResponse
	if err := client.Call("communicate_uavs", gs.UavCommRequest{UidK: uidK}, &resp); err != nil {
		return nil, fmt.Errorf("communicate_uavs: %w", err)
	}
	if len(resp.CM) == 0 {
		return nil, fmt.Errorf("recover group key: empty challenge list")
	}

	mu, ok := new(big.Int).SetString(resp.Mu, 16)
	if !ok {
		return nil, fmt.Errorf("recover group key: malformed mu %q", resp.Mu)
	}

	pufResponse, err := puf.Calculate(resp.CM[0])
	if err != nil {
		return nil, fmt.Errorf("recover group key: %w", err)
	}

	p, err := primes.HashToPrime([]byte(pufResponse + cfg.Uid))
	if err != nil {
		return nil, fmt.Errorf("recover group key: %w", err)
	}

	return new(big.Int).Mod(mu, p), nil
}
