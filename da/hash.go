package da

import "crypto/sha256"

// dahHash computes the data root of a data availability header: a binary
// Merkle root over the concatenation of row roots and column roots, folded
// pairwise (sha256(left||right)) up to a single apex, with an odd node at
// any level promoted unchanged to the next level. Leaves are the roots
// themselves with no further domain separation, so a RowProof's sibling
// path — which starts from the row root directly — closes under exactly
// this apex.
func dahHash(rowRoots, columnRoots [][]byte) []byte {
	leaves := make([][]byte, 0, len(rowRoots)+len(columnRoots))
	leaves = append(leaves, rowRoots...)
	leaves = append(leaves, columnRoots...)
	if len(leaves) == 0 {
		h := sha256.Sum256(nil)
		return h[:]
	}
	level := leaves
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			h := sha256.Sum256(append(append([]byte{}, level[i]...), level[i+1]...))
			next = append(next, h[:])
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}
