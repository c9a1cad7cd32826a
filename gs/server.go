package gs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/52funny/egcda-uavs/wire"
)

// RegisterHandlers wires svc's operations onto srv under the method names
// of the GS RPC surface.
func RegisterHandlers(srv *wire.Server, svc *Service) {
	srv.Handle("get_gs_pubkey", func(json.RawMessage) (any, error) {
		return svc.GetGsPubkey(), nil
	})

	srv.Handle("authenticate_uav_phase1", func(payload json.RawMessage) (any, error) {
		var req UavAuthRequest1
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode authenticate_uav_phase1: %w", err)
		}
		return svc.AuthenticateUavPhase1(req)
	})

	srv.Handle("authenticate_uav_phase2", func(payload json.RawMessage) (any, error) {
		var req UavAuthRequest2
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode authenticate_uav_phase2: %w", err)
		}
		return svc.AuthenticateUavPhase2(req, time.Now())
	})

	srv.Handle("batch_authenticate_uavs_phase1", func(payload json.RawMessage) (any, error) {
		var req BatchUavAuthRequest1
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode batch_authenticate_uavs_phase1: %w", err)
		}
		return svc.BatchAuthenticateUavsPhase1(req)
	})

	srv.Handle("batch_authenticate_uavs_phase2", func(payload json.RawMessage) (any, error) {
		var req BatchUavAuthRequest2
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode batch_authenticate_uavs_phase2: %w", err)
		}
		return svc.BatchAuthenticateUavsPhase2(req, time.Now())
	})

	srv.Handle("get_all_uav_id", func(payload json.RawMessage) (any, error) {
		var selfUid string
		if err := json.Unmarshal(payload, &selfUid); err != nil {
			return nil, fmt.Errorf("decode get_all_uav_id: %w", err)
		}
		return svc.GetAllUavId(selfUid), nil
	})

	srv.Handle("communicate_uavs", func(payload json.RawMessage) (any, error) {
		var req UavCommRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode communicate_uavs: %w", err)
		}
		return svc.CommunicateUavs(req)
	})
}
