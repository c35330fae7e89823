package zk

import "fmt"

// Sentinel errors the classifier matches against with errors.Is. Every
// prover interaction funnels into one of these via classifyStatus.
var (
	ErrSimulationFailed = fmt.Errorf("prover: simulation failed")
	ErrUnfulfillable    = fmt.Errorf("prover: request unfulfillable")
	ErrRequestTimedOut  = fmt.Errorf("prover: request timed out")
	ErrAuctionTimedOut  = fmt.Errorf("prover: auction timed out")
	ErrRPC              = fmt.Errorf("prover: rpc error")
)

// classifyStatus maps a status string reported by the prover network into
// one of the sentinels above, or nil for a terminal success / still-pending
// status that callers handle separately.
func classifyStatus(status string) error {
	switch status {
	case "simulation_failed":
		return ErrSimulationFailed
	case "unfulfillable":
		return ErrUnfulfillable
	case "timed_out":
		return ErrRequestTimedOut
	case "auction_timed_out":
		return ErrAuctionTimedOut
	default:
		return nil
	}
}
