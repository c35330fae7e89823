// Package classify maps transport/RPC failures from the DA node and the
// prover network into a retryable/permanent verdict. It never constructs
// store rows itself — callers in worker decide what status to persist
// from the verdict.
package classify

import (
	"errors"

	"github.com/celestiaorg/eq-service/da"
	"github.com/celestiaorg/eq-service/zk"
)

// Verdict is the outcome of classifying one fallible DA or prover
// interaction.
type Verdict struct {
	// Retryable is true when the job should be resubmitted from
	// DataAvailabilityPending; false means the failure is permanent.
	Retryable bool
	// Reason is a short operator-facing label for logs, one per distinct
	// sentinel error.
	Reason string
	// MetricLabel is the coarse error_type metric dimension: every DA
	// failure collapses to DaClientError and every prover failure to
	// ZkClientError, regardless of which sentinel error caused it.
	MetricLabel string
}

const (
	daClientErrorLabel = "DaClientError"
	zkClientErrorLabel = "ZkClientError"
)

// DA classifies an error returned by the DA fetch stage.
func DA(err error) Verdict {
	switch {
	case errors.Is(err, da.ErrHeaderNotFound):
		return Verdict{Retryable: true, Reason: "DaHeaderNotFound", MetricLabel: daClientErrorLabel}
	case errors.Is(err, da.ErrHeaderFromFuture):
		return Verdict{Retryable: false, Reason: "DaHeaderFromFuture", MetricLabel: daClientErrorLabel}
	case errors.Is(err, da.ErrHeaderSyncing):
		return Verdict{Retryable: true, Reason: "DaHeaderSyncing", MetricLabel: daClientErrorLabel}
	case errors.Is(err, da.ErrBlobNotFound):
		return Verdict{Retryable: false, Reason: "DaBlobNotFound", MetricLabel: daClientErrorLabel}
	case errors.Is(err, da.ErrMissingBlobIndex):
		return Verdict{Retryable: false, Reason: "DaMissingBlobIndex", MetricLabel: daClientErrorLabel}
	case errors.Is(err, da.ErrShareRangeProofFailed):
		return Verdict{Retryable: false, Reason: "DaShareRangeProofFailed", MetricLabel: daClientErrorLabel}
	case errors.Is(err, da.ErrTransport):
		return Verdict{Retryable: true, Reason: "DaClientError", MetricLabel: daClientErrorLabel}
	default:
		return Verdict{Retryable: false, Reason: "DaUnknownError", MetricLabel: daClientErrorLabel}
	}
}

// Prover classifies an error returned by the ZK stage.
func Prover(err error) Verdict {
	switch {
	case errors.Is(err, zk.ErrSimulationFailed):
		return Verdict{Retryable: false, Reason: "ProverSimulationFailed", MetricLabel: zkClientErrorLabel}
	case errors.Is(err, zk.ErrUnfulfillable):
		return Verdict{Retryable: false, Reason: "ProverUnfulfillable", MetricLabel: zkClientErrorLabel}
	case errors.Is(err, zk.ErrRequestTimedOut):
		return Verdict{Retryable: true, Reason: "ProverRequestTimedOut", MetricLabel: zkClientErrorLabel}
	case errors.Is(err, zk.ErrAuctionTimedOut):
		return Verdict{Retryable: false, Reason: "ProverAuctionTimedOut", MetricLabel: zkClientErrorLabel}
	case errors.Is(err, zk.ErrRPC):
		return Verdict{Retryable: true, Reason: "ProverRpcError", MetricLabel: zkClientErrorLabel}
	default:
		return Verdict{Retryable: true, Reason: "ProverUnknownError", MetricLabel: zkClientErrorLabel}
	}
}
