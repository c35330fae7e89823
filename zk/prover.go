// Package zk is the client for the remote proving network: submitting a
// witness for an asynchronous Groth16 proof and waiting for its result, plus
// the setup cache wiring that ensures the program-specific proving artifact
// is computed at most once per process.
package zk

import (
	"context"
	"time"

	"github.com/celestiaorg/eq-service/witness"
)

// Proof is the terminal result of a successful proof request: the opaque
// proof bytes and the 76-byte public-values encoding embedded alongside it.
type Proof struct {
	Bytes        []byte
	PublicValues []byte
}

// ProverClient abstracts the remote proving network so the worker and its
// tests can swap a real network client for zk/localprover's in-process
// simulator.
type ProverClient interface {
	// Submit requests an asynchronous Groth16 proof for w, bound to
	// programHash, within the given deadline. On acknowledgement it
	// returns the network's 32-byte request id.
	Submit(ctx context.Context, programHash [32]byte, w witness.Witness, timeout time.Duration) ([32]byte, error)
	// Wait blocks until requestId's proof is ready, fails permanently, or
	// the timeout elapses.
	Wait(ctx context.Context, requestId [32]byte, timeout time.Duration) (Proof, error)
}
