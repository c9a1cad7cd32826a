package ta

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/52funny/egcda-uavs/wire"
)

// RegisterHandlers wires svc's operations onto srv under the method names
// of the TA RPC surface.
func RegisterHandlers(srv *wire.Server, svc *Service) {
	srv.Handle("get_ta_pubkey", func(json.RawMessage) (any, error) {
		return svc.GetTaPubkey(), nil
	})

	srv.Handle("register_gs", func(payload json.RawMessage) (any, error) {
		var req GsRegisterRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode register_gs: %w", err)
		}
		if err := svc.RegisterGs(req); err != nil {
			return nil, err
		}
		return nil, nil
	})

	srv.Handle("authenticate_gs", func(payload json.RawMessage) (any, error) {
		var req GsAuthRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode authenticate_gs: %w", err)
		}
		return svc.AuthenticateGs(req, time.Now())
	})

	srv.Handle("get_uav_list", func(payload json.RawMessage) (any, error) {
		var gid string
		if err := json.Unmarshal(payload, &gid); err != nil {
			return nil, fmt.Errorf("decode get_uav_list: %w", err)
		}
		ct, err := svc.GetUavList(gid)
		if err != nil {
			return nil, err
		}
		return wire.HexBytes(ct), nil
	})

	srv.Handle("register_uav_phase1", func(json.RawMessage) (any, error) {
		return svc.RegisterUavPhase1()
	})

	srv.Handle("register_uav_phase2", func(payload json.RawMessage) (any, error) {
		var req UavRegisterRequest2
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode register_uav_phase2: %w", err)
		}
		return svc.RegisterUavPhase2(req)
	})
}
