// Package witness defines the self-contained ZK input bundle the DA fetch
// stage assembles and the guest program reverifies, plus the 76-byte public
// output codec both sides agree on.
package witness

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// ShareSize is the fixed size of one raw DA share.
const ShareSize = 512

// Share header layout constants, part of the guest's cross-host ABI —
// these must match the DA protocol version targeted.
const (
	NamespaceSize                       = 29
	ShareInfoBytes                      = 1
	SequenceLenBytes                    = 4
	SignerSize                          = 20
	FirstSparseShareContentSize         = 478
	ContinuationSparseShareContentSize  = 482
)

// NMTProof is a namespaced-Merkle-tree inclusion proof binding a contiguous
// run of shares (hashed together as one leaf) to a row root. Siblings are
// ordered leaf-to-root; Positions[i] true means the sibling at that level is
// the right-hand node.
type NMTProof struct {
	Siblings  [][]byte
	Positions []bool
}

// rootFrom combines a starting leaf hash with the proof's siblings, the same
// sibling/position combining rule used throughout the pack's Merkle proof
// code: each level is sha256(left||right) keyed by Positions[i].
func (p NMTProof) rootFrom(leaf []byte) ([]byte, error) {
	if len(p.Siblings) != len(p.Positions) {
		return nil, fmt.Errorf("witness: NMTProof siblings/positions length mismatch")
	}
	current := leaf
	for i, sibling := range p.Siblings {
		var combined []byte
		if p.Positions[i] {
			combined = append(append([]byte{}, current...), sibling...)
		} else {
			combined = append(append([]byte{}, sibling...), current...)
		}
		h := sha256.Sum256(combined)
		current = h[:]
	}
	return current, nil
}

// RowProof binds one row root to the DA block's data root — the Merkle
// path from that row's leaf position up through the tree of row and column
// roots (see da.DataAvailabilityHeader.Hash) to the apex.
type RowProof struct {
	Siblings  [][]byte
	Positions []bool
}

func (p RowProof) rootFrom(leaf []byte) ([]byte, error) {
	np := NMTProof(p)
	return np.rootFrom(leaf)
}

// ShareProof is the inclusion claim over a contiguous share range: the
// shares themselves, the namespace they are published under, and — for
// every row the range spans — an NMT proof binding that row's shares to its
// row root, paired with a RowProof binding that row root to the data root.
type ShareProof struct {
	Shares         [][]byte
	NamespaceId    [NamespaceSize]byte
	NmtMultiproofs []NMTProof
	RowProofs      []RowProof
	// RowShareCounts gives, per row the range spans, how many of Shares
	// belong to that row (in order). Same length as NmtMultiproofs and
	// RowProofs.
	RowShareCounts []int
}

// rowLeaf hashes a namespace together with the ordered shares of one row
// into the leaf value the row's NMT proof is anchored on.
func rowLeaf(namespace [NamespaceSize]byte, shares [][]byte) []byte {
	h := sha256.New()
	h.Write(namespace[:])
	for _, s := range shares {
		h.Write(s)
	}
	return h.Sum(nil)
}

// Verify performs the mandatory local sanity check: it duplicates what the
// guest will later reprove, rejecting a malformed or impossible witness
// before a proof is ever requested from the remote prover.
func (sp ShareProof) Verify(dataRoot []byte) error {
	if len(sp.NmtMultiproofs) != len(sp.RowShareCounts) || len(sp.RowProofs) != len(sp.RowShareCounts) {
		return fmt.Errorf("witness: proof/row-count slice lengths do not match (%d nmt, %d row, %d counts)",
			len(sp.NmtMultiproofs), len(sp.RowProofs), len(sp.RowShareCounts))
	}
	if len(sp.NmtMultiproofs) == 0 {
		return fmt.Errorf("witness: share range spans zero rows")
	}
	for _, s := range sp.Shares {
		if len(s) != ShareSize {
			return fmt.Errorf("witness: share has length %d, want %d", len(s), ShareSize)
		}
	}

	offset := 0
	for i, nmtProof := range sp.NmtMultiproofs {
		count := sp.RowShareCounts[i]
		if offset+count > len(sp.Shares) {
			return fmt.Errorf("witness: row %d references shares past the end of the range", i)
		}
		rowShares := sp.Shares[offset : offset+count]
		offset += count

		leaf := rowLeaf(sp.NamespaceId, rowShares)
		rowRoot, err := nmtProof.rootFrom(leaf)
		if err != nil {
			return fmt.Errorf("witness: row %d nmt proof: %w", i, err)
		}
		computedRoot, err := sp.RowProofs[i].rootFrom(rowRoot)
		if err != nil {
			return fmt.Errorf("witness: row %d row proof: %w", i, err)
		}
		if string(computedRoot) != string(dataRoot) {
			return fmt.Errorf("witness: row %d proof does not close under the given data root", i)
		}
	}
	if offset != len(sp.Shares) {
		return fmt.Errorf("witness: row proofs cover %d shares, witness carries %d", offset, len(sp.Shares))
	}
	return nil
}

// Witness is the self-contained bundle handed to the ZK stage and reverified
// by the guest program without network access.
type Witness struct {
	ShareProof  ShareProof
	DataRoot    [32]byte
	BatchNumber uint32
	ChainId     uint64
}

// PublicOutputSize is the exact byte length of the encoded public output.
const PublicOutputSize = 76

// PublicOutput is the guest's committed claim: keccakHash ties a specific
// reconstructed blob payload to a dataRoot, batchNumber, and chainId so the
// proof cannot be replayed against a different batch or chain.
type PublicOutput struct {
	KeccakHash  [32]byte
	DataRoot    [32]byte
	BatchNumber uint32
	ChainId     uint64
}

// Encode renders the exactly-76-byte little-endian layout consumed by
// downstream on-chain verifiers.
func (o PublicOutput) Encode() [PublicOutputSize]byte {
	var buf [PublicOutputSize]byte
	copy(buf[0:32], o.KeccakHash[:])
	copy(buf[32:64], o.DataRoot[:])
	binary.LittleEndian.PutUint32(buf[64:68], o.BatchNumber)
	binary.LittleEndian.PutUint64(buf[68:76], o.ChainId)
	return buf
}

// DecodePublicOutput parses the 76-byte encoding back into a PublicOutput.
func DecodePublicOutput(buf []byte) (PublicOutput, error) {
	var o PublicOutput
	if len(buf) != PublicOutputSize {
		return o, fmt.Errorf("witness: public output must be %d bytes, got %d", PublicOutputSize, len(buf))
	}
	copy(o.KeccakHash[:], buf[0:32])
	copy(o.DataRoot[:], buf[32:64])
	o.BatchNumber = binary.LittleEndian.Uint32(buf[64:68])
	o.ChainId = binary.LittleEndian.Uint64(buf[68:76])
	return o, nil
}
