// Package jobid defines the canonical identity of an inclusion-proof
// request and its deterministic byte encoding for use as a store key.
package jobid

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// NamespaceSize is the byte length of a Celestia v0 namespace.
const NamespaceSize = 29

// CommitmentSize is the byte length of a blob commitment.
const CommitmentSize = 32

// Namespace is a fixed-size v0 namespace identifier.
type Namespace [NamespaceSize]byte

// Commitment is a blob commitment hash.
type Commitment [CommitmentSize]byte

// JobId uniquely identifies one inclusion-proof request. Two requests
// with identical fields are the same job and share the same queue/finished
// row.
type JobId struct {
	Height      uint64
	Namespace   Namespace
	Commitment  Commitment
	ChainId     uint64
	BatchNumber uint32
}

// New validates raw request fields and builds a JobId.
func New(height uint64, namespace, commitment []byte, chainId uint64, batchNumber uint32) (JobId, error) {
	var id JobId
	if len(namespace) != NamespaceSize {
		return id, fmt.Errorf("jobid: namespace must be %d bytes, got %d", NamespaceSize, len(namespace))
	}
	if len(commitment) != CommitmentSize {
		return id, fmt.Errorf("jobid: commitment must be %d bytes, got %d", CommitmentSize, len(commitment))
	}
	id.Height = height
	copy(id.Namespace[:], namespace)
	copy(id.Commitment[:], commitment)
	id.ChainId = chainId
	id.BatchNumber = batchNumber
	return id, nil
}

// Key is the deterministic byte encoding used as the store key, shared by
// the queue and finished trees. Fixed width, big-endian integers so that
// lexicographic key order matches (height, namespace, commitment, chainId,
// batchNumber) order.
func (id JobId) Key() []byte {
	buf := make([]byte, 8+NamespaceSize+CommitmentSize+8+4)
	off := 0
	binary.BigEndian.PutUint64(buf[off:], id.Height)
	off += 8
	copy(buf[off:], id.Namespace[:])
	off += NamespaceSize
	copy(buf[off:], id.Commitment[:])
	off += CommitmentSize
	binary.BigEndian.PutUint64(buf[off:], id.ChainId)
	off += 8
	binary.BigEndian.PutUint32(buf[off:], id.BatchNumber)
	return buf
}

// KeyLen is the fixed length of Key's output.
const KeyLen = 8 + NamespaceSize + CommitmentSize + 8 + 4

// FromKey decodes a key produced by Key back into a JobId.
func FromKey(key []byte) (JobId, error) {
	var id JobId
	if len(key) != KeyLen {
		return id, fmt.Errorf("jobid: key must be %d bytes, got %d", KeyLen, len(key))
	}
	off := 0
	id.Height = binary.BigEndian.Uint64(key[off:])
	off += 8
	copy(id.Namespace[:], key[off:off+NamespaceSize])
	off += NamespaceSize
	copy(id.Commitment[:], key[off:off+CommitmentSize])
	off += CommitmentSize
	id.ChainId = binary.BigEndian.Uint64(key[off:])
	off += 8
	id.BatchNumber = binary.BigEndian.Uint32(key[off:])
	return id, nil
}

// String renders the printable form: height:base64(namespace):base64(commitment):chainId:batchNumber.
func (id JobId) String() string {
	return fmt.Sprintf("%d:%s:%s:%d:%d",
		id.Height,
		base64.StdEncoding.EncodeToString(id.Namespace[:]),
		base64.StdEncoding.EncodeToString(id.Commitment[:]),
		id.ChainId,
		id.BatchNumber,
	)
}
