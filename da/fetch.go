package da

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/celestiaorg/eq-service/witness"
)

// shareCountForBlob returns how many shares a blob of dataLen bytes
// occupies, given the first share carries less payload than continuation
// shares (the rest is spent on the share header: namespace, info byte and
// sequence length). It uses the version-0 first-share capacity; the signer
// bytes of a version-1 first share are not accounted for.
func shareCountForBlob(dataLen int) int {
	if dataLen <= witness.FirstSparseShareContentSize {
		return 1
	}
	remaining := dataLen - witness.FirstSparseShareContentSize
	cont := (remaining + witness.ContinuationSparseShareContentSize - 1) / witness.ContinuationSparseShareContentSize
	return 1 + cont
}

// toShareProof adapts the wire-shaped ShareRangeResult into the witness
// package's verification types.
func toShareProof(namespace []byte, r ShareRangeResult) (witness.ShareProof, error) {
	if len(namespace) != witness.NamespaceSize {
		return witness.ShareProof{}, fmt.Errorf("da: namespace has length %d, want %d", len(namespace), witness.NamespaceSize)
	}
	var ns [witness.NamespaceSize]byte
	copy(ns[:], namespace)

	nmt := make([]witness.NMTProof, len(r.NmtMultiproofs))
	for i, p := range r.NmtMultiproofs {
		nmt[i] = witness.NMTProof{Siblings: p.Siblings, Positions: p.Positions}
	}
	rows := make([]witness.RowProof, len(r.RowProofs))
	for i, p := range r.RowProofs {
		rows[i] = witness.RowProof{Siblings: p.Siblings, Positions: p.Positions}
	}
	return witness.ShareProof{
		Shares:         r.Shares,
		NamespaceId:    ns,
		NmtMultiproofs: nmt,
		RowProofs:      rows,
		RowShareCounts: r.RowShareCounts,
	}, nil
}

// Fetch runs the DA fetch stage for one job: locate the blob in the
// extended data square, pull its share range with inclusion proofs, and
// locally reverify that range against the header's data root before handing
// a witness on to the ZK stage. A failure here is classified by
// classify.DA and never reaches the prover.
func Fetch(ctx context.Context, client *Client, height uint64, namespace, commitment []byte, chainId uint64, batchNumber uint32) (witness.Witness, error) {
	header, err := client.GetHeader(ctx, height)
	if err != nil {
		return witness.Witness{}, fmt.Errorf("da: get header at height %d: %w", height, err)
	}

	edsSize := len(header.Dah.RowRoots)
	if edsSize == 0 || edsSize%2 != 0 {
		return witness.Witness{}, fmt.Errorf("da: header at height %d has malformed square size %d", height, edsSize)
	}
	odsSize := edsSize / 2

	blob, err := client.GetBlob(ctx, height, namespace, commitment)
	if err != nil {
		return witness.Witness{}, fmt.Errorf("da: get blob at height %d: %w", height, err)
	}
	if blob.Index == nil {
		return witness.Witness{}, fmt.Errorf("da: blob at height %d: %w", height, ErrMissingBlobIndex)
	}
	blobIndex := *blob.Index

	firstRow := blobIndex / edsSize
	odsIndex := blobIndex - firstRow*odsSize
	log.Debug().Uint64("height", height).Int("first_row", firstRow).Int("ods_index", odsIndex).Msg("located blob in extended data square")

	shareCount := shareCountForBlob(len(blob.Data))

	rangeResult, err := client.GetShareRange(ctx, height, odsIndex, shareCount)
	if err != nil {
		return witness.Witness{}, fmt.Errorf("da: get share range at height %d: %w", height, err)
	}

	sp, err := toShareProof(namespace, rangeResult)
	if err != nil {
		return witness.Witness{}, fmt.Errorf("da: %w: %w", ErrShareRangeProofFailed, err)
	}

	dataRoot := header.Dah.Hash()
	if err := sp.Verify(dataRoot); err != nil {
		return witness.Witness{}, fmt.Errorf("da: %w: %w", ErrShareRangeProofFailed, err)
	}

	var root [32]byte
	copy(root[:], dataRoot)

	return witness.Witness{
		ShareProof:  sp,
		DataRoot:    root,
		BatchNumber: batchNumber,
		ChainId:     chainId,
	}, nil
}
