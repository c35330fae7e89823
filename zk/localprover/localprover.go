// Package localprover is an in-process stand-in for the remote proving
// network, used by worker integration tests so they can exercise the full
// DA-fetch -> submit -> wait -> finalize pipeline without a live external
// prover. It produces real Groth16 proofs over guest.InclusionCircuit.
package localprover

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/celestiaorg/eq-service/guest"
	"github.com/celestiaorg/eq-service/witness"
	"github.com/celestiaorg/eq-service/zk"
)

type result struct {
	proof zk.Proof
	err   error
}

type pendingRequest struct {
	done   chan struct{}
	result result
}

// Prover implements zk.ProverClient entirely in-process, running a real
// Groth16 setup/prove over guest.InclusionCircuit so integration tests
// exercise the same serialization paths a live network would.
type Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey

	wasmRuntime wazero.Runtime
	// wasmBuffer is an optional sandboxed post-check module whose
	// check_public_values export is called before a proof is considered
	// final; nil skips it.
	wasmBuffer []byte

	mu      sync.Mutex
	pending map[[32]byte]*pendingRequest

	// Unfulfillable makes every Submit behave as if the remote network
	// rejected the request outright, for exercising the worker's
	// permanent-failure path.
	Unfulfillable bool
}

// New compiles guest.InclusionCircuit, runs its one-time Groth16 setup, and
// boots a wazero runtime for the optional sandboxed post-check.
func New(ctx context.Context, wasmBuffer []byte) (*Prover, error) {
	var circuit guest.InclusionCircuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("localprover: compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("localprover: groth16 setup: %w", err)
	}

	runtime := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	return &Prover{
		ccs:         ccs,
		pk:          pk,
		vk:          vk,
		wasmRuntime: runtime,
		wasmBuffer:  wasmBuffer,
		pending:     make(map[[32]byte]*pendingRequest),
	}, nil
}

// Close releases the wazero runtime.
func (p *Prover) Close(ctx context.Context) error {
	return p.wasmRuntime.Close(ctx)
}

// Submit implements zk.ProverClient. It acknowledges immediately with a
// fresh request id and runs the actual proof generation asynchronously.
func (p *Prover) Submit(ctx context.Context, programHash [32]byte, w witness.Witness, timeout time.Duration) ([32]byte, error) {
	var id [32]byte
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("%w: generate request id: %v", zk.ErrRPC, err)
	}

	req := &pendingRequest{done: make(chan struct{})}
	p.mu.Lock()
	p.pending[id] = req
	p.mu.Unlock()

	go p.run(ctx, w, req)

	log.Info().Str("request_id", fmt.Sprintf("%x", id)).Msg("localprover: request accepted")
	return id, nil
}

func (p *Prover) run(ctx context.Context, w witness.Witness, req *pendingRequest) {
	defer close(req.done)

	if p.Unfulfillable {
		req.result = result{err: zk.ErrUnfulfillable}
		return
	}

	publicOutput, err := guest.Verify(w)
	if err != nil {
		req.result = result{err: fmt.Errorf("%w: %v", zk.ErrSimulationFailed, err)}
		return
	}

	assignment := guest.Assignment(publicOutput)
	fullWitness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		req.result = result{err: fmt.Errorf("%w: build witness: %v", zk.ErrSimulationFailed, err)}
		return
	}
	proof, err := groth16.Prove(p.ccs, p.pk, fullWitness)
	if err != nil {
		req.result = result{err: fmt.Errorf("%w: prove: %v", zk.ErrSimulationFailed, err)}
		return
	}

	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		req.result = result{err: fmt.Errorf("%w: serialize proof: %v", zk.ErrSimulationFailed, err)}
		return
	}

	publicValues := publicOutput.Encode()
	if err := p.sandboxCheck(ctx, publicValues[:]); err != nil {
		req.result = result{err: fmt.Errorf("%w: sandbox check: %v", zk.ErrSimulationFailed, err)}
		return
	}

	req.result = result{proof: zk.Proof{Bytes: proofBuf.Bytes(), PublicValues: publicValues[:]}}
}

// sandboxCheck instantiates the optional WASM module and calls its
// check_public_values export with no arguments; the public values are not
// passed to the module. With no module configured this is a no-op.
func (p *Prover) sandboxCheck(ctx context.Context, publicValues []byte) error {
	if len(p.wasmBuffer) == 0 {
		return nil
	}
	mod, err := p.wasmRuntime.Instantiate(ctx, p.wasmBuffer)
	if err != nil {
		return fmt.Errorf("instantiate sandbox module: %w", err)
	}
	defer mod.Close(ctx)

	checkFn := mod.ExportedFunction("check_public_values")
	if checkFn == nil {
		return fmt.Errorf("sandbox module does not export check_public_values")
	}
	if _, err := checkFn.Call(ctx); err != nil {
		return fmt.Errorf("sandbox module rejected public values: %w", err)
	}
	return nil
}

// Wait implements zk.ProverClient.
func (p *Prover) Wait(ctx context.Context, requestId [32]byte, timeout time.Duration) (zk.Proof, error) {
	p.mu.Lock()
	req, ok := p.pending[requestId]
	p.mu.Unlock()
	if !ok {
		return zk.Proof{}, fmt.Errorf("%w: unknown request id %x", zk.ErrRPC, requestId)
	}

	select {
	case <-req.done:
		return req.result.proof, req.result.err
	case <-ctx.Done():
		return zk.Proof{}, fmt.Errorf("%w: %v", zk.ErrRequestTimedOut, ctx.Err())
	case <-time.After(timeout):
		return zk.Proof{}, zk.ErrRequestTimedOut
	}
}
