package zk

import (
	"context"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog/log"

	"github.com/celestiaorg/eq-service/store"
	"github.com/celestiaorg/eq-service/witness"
)

// Circuit is the minimal surface the ZK stage needs from the guest program:
// a gnark circuit definition it can compile once to produce (and cache) the
// program's proving setup.
type Circuit interface {
	frontend.Circuit
}

// Stage bundles the prover network client with the program's cached
// proving setup, the two collaborators the worker's ZK transitions need.
type Stage struct {
	prover      ProverClient
	store       *store.Store
	programHash [32]byte
	newCircuit  func() Circuit
}

// NewStage builds a ZK stage for one guest program, identified by
// programHash. newCircuit constructs a fresh, unassigned instance of the
// circuit for compilation — gnark's frontend.Compile mutates its argument.
func NewStage(prover ProverClient, st *store.Store, programHash [32]byte, newCircuit func() Circuit) *Stage {
	return &Stage{prover: prover, store: st, programHash: programHash, newCircuit: newCircuit}
}

// EnsureSetup computes (once per programHash, ever) or loads the cached
// Groth16 proving/verifying key pair for the guest circuit. Concurrent
// callers across jobs observe the same artifact.
func (s *Stage) EnsureSetup(ctx context.Context) (store.ProvingSetup, error) {
	return s.store.GetOrComputeSetup(s.programHash, func() (store.ProvingSetup, error) {
		log.Info().Str("program_hash", fmt.Sprintf("%x", s.programHash)).Msg("computing proving setup (one-time)")
		circuit := s.newCircuit()
		ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
		if err != nil {
			return store.ProvingSetup{}, fmt.Errorf("zk: compile guest circuit: %w", err)
		}
		pk, vk, err := groth16.Setup(ccs)
		if err != nil {
			return store.ProvingSetup{}, fmt.Errorf("zk: groth16 setup: %w", err)
		}
		return store.ProvingSetup{ProgramHash: s.programHash, ProvingKey: pk, VerifyingKey: vk}, nil
	})
}

// Submit ensures the proving setup exists, then requests an asynchronous
// proof for w from the remote prover network.
func (s *Stage) Submit(ctx context.Context, w witness.Witness, timeout time.Duration) ([32]byte, error) {
	if _, err := s.EnsureSetup(ctx); err != nil {
		return [32]byte{}, fmt.Errorf("zk: %w", err)
	}
	id, err := s.prover.Submit(ctx, s.programHash, w, timeout)
	if err != nil {
		return [32]byte{}, fmt.Errorf("zk: submit: %w", err)
	}
	return id, nil
}

// Wait blocks for requestId's proof, bounded by timeout.
func (s *Stage) Wait(ctx context.Context, requestId [32]byte, timeout time.Duration) (Proof, error) {
	proof, err := s.prover.Wait(ctx, requestId, timeout)
	if err != nil {
		return Proof{}, fmt.Errorf("zk: wait: %w", err)
	}
	return proof, nil
}
