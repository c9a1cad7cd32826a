// Package uav implements the drone side of the protocol: registering with
// the trusted authority, authenticating to a ground station, and recovering
// the broadcast group key from a CRT combinator.
package uav

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/52funny/egcda-uavs/crypto/pairing"
	"github.com/52funny/egcda-uavs/protoerr"
)

// ConfigPath is the default on-disk location of a registered UAV's identity.
const ConfigPath = "uav.json"

// Config is a UAV's persisted identity: its TA-issued uid and keypair.
type Config struct {
	Uid string
	Sk  pairing.Scalar
	Pk  pairing.G2
}

// configWire is Config's on-disk JSON shape, matching the hex encoding used
// everywhere else on the wire.
type configWire struct {
	Uid string `json:"uid"`
	Sk  string `json:"sk"`
	Pk  string `json:"pk"`
}

// LoadConfig reads a UAV's identity from path. It returns ErrConfigMissing
// if the file does not exist, the expected state before the first --register run.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", protoerr.ErrConfigMissing, path)
		}
		return Config{}, fmt.Errorf("load uav config: %w", err)
	}

	var w configWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Config{}, fmt.Errorf("load uav config: %w", err)
	}

	sk, err := pairing.ScalarFromHex(w.Sk)
	if err != nil {
		return Config{}, fmt.Errorf("load uav config: %w", err)
	}
	pk, err := pairing.G2FromHex(w.Pk)
	if err != nil {
		return Config{}, fmt.Errorf("load uav config: %w", err)
	}
	return Config{Uid: w.Uid, Sk: sk, Pk: pk}, nil
}

// Save writes cfg to path as JSON.
func (cfg Config) Save(path string) error {
	w := configWire{Uid: cfg.Uid, Sk: pairing.ScalarToHex(cfg.Sk), Pk: pairing.HexG2(cfg.Pk)}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("save uav config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("save uav config: %w", err)
	}
	return nil
}
