// Package guest is the ZK guest program: the logic that runs inside the
// prover to reverify a witness's inclusion claim and commit the 76-byte
// public output, plus the gnark circuit used to produce a Groth16 proof of
// that claim.
package guest

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/celestiaorg/eq-service/witness"
)

// programVersion identifies this guest program's verification logic. The
// config tree keys the cached proving setup by ProgramHash, so bumping this
// string is how a breaking change to the circuit invalidates old setups.
const programVersion = "eq-service/guest/InclusionCircuit/v1"

// ProgramHash is the 32-byte identity of this guest program, the key under
// which its proving setup is cached.
func ProgramHash() [32]byte {
	var h [32]byte
	copy(h[:], crypto.Keccak256([]byte(programVersion)))
	return h
}

// Verify reruns the guest's two mandatory checks against a witness: the
// share-range Merkle proof against the claimed data root, then the
// Keccak256 payload hash over the contained shares. It returns the public
// output the guest commits, or an error if either check fails (in which
// case no proof is ever produced for this witness).
func Verify(w witness.Witness) (witness.PublicOutput, error) {
	if err := w.ShareProof.Verify(w.DataRoot[:]); err != nil {
		return witness.PublicOutput{}, fmt.Errorf("guest: share proof: %w", err)
	}
	keccakHash, err := PayloadHash(w.ShareProof.Shares)
	if err != nil {
		return witness.PublicOutput{}, fmt.Errorf("guest: payload hash: %w", err)
	}
	return witness.PublicOutput{
		KeccakHash:  keccakHash,
		DataRoot:    w.DataRoot,
		BatchNumber: w.BatchNumber,
		ChainId:     w.ChainId,
	}, nil
}

// PayloadHash recomputes the blob's Keccak256 by streaming the payload
// portion of each share, skipping share headers: the first share skips
// namespace+info+sequence-length bytes (plus signer bytes for a
// version-1 share, whose payload is shorter by the same amount so it still
// ends at the share boundary), continuation shares skip only
// namespace+info bytes.
// An unrecognized share version aborts.
func PayloadHash(shares [][]byte) ([32]byte, error) {
	var zero [32]byte
	payloads := make([][]byte, 0, len(shares))
	for i, share := range shares {
		if len(share) != witness.ShareSize {
			return zero, fmt.Errorf("guest: share %d has length %d, want %d", i, len(share), witness.ShareSize)
		}
		infoByte := share[witness.NamespaceSize]
		version := infoByte >> 1

		var skip, contentSize int
		if i == 0 {
			skip = witness.NamespaceSize + witness.ShareInfoBytes + witness.SequenceLenBytes
			contentSize = witness.FirstSparseShareContentSize
			switch version {
			case 0:
			case 1:
				skip += witness.SignerSize
				contentSize -= witness.SignerSize
			default:
				return zero, fmt.Errorf("guest: share 0 has unknown version %d", version)
			}
		} else {
			skip = witness.NamespaceSize + witness.ShareInfoBytes
			switch version {
			case 0, 1:
			default:
				return zero, fmt.Errorf("guest: share %d has unknown version %d", i, version)
			}
			contentSize = witness.ContinuationSparseShareContentSize
		}

		if skip+contentSize > len(share) {
			return zero, fmt.Errorf("guest: share %d header/content layout exceeds share size", i)
		}
		payloads = append(payloads, share[skip:skip+contentSize])
	}

	var out [32]byte
	copy(out[:], crypto.Keccak256(payloads...))
	return out, nil
}

// Commitment computes the same MiMC binding over the public output fields
// that InclusionCircuit.Define asserts in-circuit, so a witness assignment
// built outside the circuit is satisfiable.
func Commitment(o witness.PublicOutput) []byte {
	h := mimc.NewMiMC()
	h.Write(o.KeccakHash[:])
	h.Write(o.DataRoot[:])

	var batchBuf [32]byte
	batchBuf[31] = byte(o.BatchNumber)
	batchBuf[30] = byte(o.BatchNumber >> 8)
	batchBuf[29] = byte(o.BatchNumber >> 16)
	batchBuf[28] = byte(o.BatchNumber >> 24)
	h.Write(batchBuf[:])

	var chainBuf [32]byte
	for i := 0; i < 8; i++ {
		chainBuf[31-i] = byte(o.ChainId >> (8 * i))
	}
	h.Write(chainBuf[:])

	return h.Sum(nil)
}

// Assignment builds the gnark witness assignment for InclusionCircuit
// satisfying o: the four public fields as big-endian field elements plus
// the matching Commitment.
func Assignment(o witness.PublicOutput) InclusionCircuit {
	var batchBuf [4]byte
	batchBuf[3] = byte(o.BatchNumber)
	batchBuf[2] = byte(o.BatchNumber >> 8)
	batchBuf[1] = byte(o.BatchNumber >> 16)
	batchBuf[0] = byte(o.BatchNumber >> 24)

	var chainBuf [8]byte
	for i := 0; i < 8; i++ {
		chainBuf[7-i] = byte(o.ChainId >> (8 * i))
	}

	return InclusionCircuit{
		KeccakHash:  new(big.Int).SetBytes(o.KeccakHash[:]),
		DataRoot:    new(big.Int).SetBytes(o.DataRoot[:]),
		BatchNumber: new(big.Int).SetBytes(batchBuf[:]),
		ChainId:     new(big.Int).SetBytes(chainBuf[:]),
		Commitment:  new(big.Int).SetBytes(Commitment(o)),
	}
}
