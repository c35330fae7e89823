// Package store implements the durable job store: three logical trees
// (queue, finished, config) held behind key prefixes in one transactional
// BadgerDB instance.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/celestiaorg/eq-service/jobid"
	"github.com/celestiaorg/eq-service/witness"
)

// StatusKind tags a JobStatus variant. Persisted so future variants can be
// added without corrupting existing finished-tree rows.
type StatusKind string

const (
	KindDataAvailabilityPending StatusKind = "DA_PENDING"
	KindDataAvailable           StatusKind = "DA_AVAILABLE"
	KindZkProofPending          StatusKind = "ZKP_PENDING"
	KindZkProofFinished         StatusKind = "ZKP_FINISHED"
	KindFailed                  StatusKind = "FAILED"
)

// schemaVersion guards the on-disk JobStatus encoding. Bump when the shape
// of JobStatus changes in a way that is not forward-compatible.
const schemaVersion = 1

// JobStatus is the tagged variant describing where a job stands. Only the
// fields relevant to Kind are populated; see the constructors below
// (Pending, Available, ZkPending, ZkFinished, Failure) for which fields a
// given Kind carries.
type JobStatus struct {
	SchemaVersion   int               `json:"schema_version"`
	Kind            StatusKind        `json:"kind"`
	Witness         *witness.Witness  `json:"witness,omitempty"`
	RequestId       *[32]byte         `json:"request_id,omitempty"`
	Proof           []byte            `json:"proof,omitempty"`
	Error           string            `json:"error,omitempty"`
	RetryFromStatus *JobStatus        `json:"retry_from_status,omitempty"`
}

// Terminal reports whether this status belongs in the finished tree.
func (s JobStatus) Terminal() bool {
	return s.Kind == KindZkProofFinished || s.Kind == KindFailed
}

// Pending builds the initial status a new request is enqueued with.
func Pending() JobStatus {
	return JobStatus{SchemaVersion: schemaVersion, Kind: KindDataAvailabilityPending}
}

// Available builds a DataAvailable status carrying the verified witness.
func Available(w witness.Witness) JobStatus {
	return JobStatus{SchemaVersion: schemaVersion, Kind: KindDataAvailable, Witness: &w}
}

// ZkPending builds a ZkProofPending status carrying the prover's request id.
func ZkPending(requestId [32]byte) JobStatus {
	return JobStatus{SchemaVersion: schemaVersion, Kind: KindZkProofPending, RequestId: &requestId}
}

// ZkFinished builds the terminal success status carrying the opaque proof.
func ZkFinished(proof []byte) JobStatus {
	return JobStatus{SchemaVersion: schemaVersion, Kind: KindZkProofFinished, Proof: proof}
}

// Failure builds a terminal Failed status. retryFrom is nil for permanent
// failures, or the prior status the job is logically resumable from for
// retryable ones.
func Failure(cause error, retryFrom *JobStatus) JobStatus {
	return JobStatus{SchemaVersion: schemaVersion, Kind: KindFailed, Error: cause.Error(), RetryFromStatus: retryFrom}
}

// Encode serializes a JobStatus for storage.
func Encode(s JobStatus) ([]byte, error) {
	return json.Marshal(s)
}

// Decode deserializes a JobStatus previously produced by Encode.
func Decode(data []byte) (JobStatus, error) {
	var s JobStatus
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("store: decode job status: %w", err)
	}
	return s, nil
}

var (
	queuePrefix    = []byte("queue:")
	finishedPrefix = []byte("finished:")
	configPrefix   = []byte("config:")
)

func queueKey(id jobid.JobId) []byte    { return append(append([]byte{}, queuePrefix...), id.Key()...) }
func finishedKey(id jobid.JobId) []byte { return append(append([]byte{}, finishedPrefix...), id.Key()...) }
func configKey(programHash [32]byte) []byte {
	return append(append([]byte{}, configPrefix...), programHash[:]...)
}

// Store is the durable job store. All mutation paths that move a job
// between trees do so inside a single Badger transaction so a job is never
// observably present in both trees or in neither.
type Store struct {
	db *badger.DB

	setups setupCache
}

// Open opens (or creates) the BadgerDB-backed store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger db at %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("durable job store opened")

	return &Store{db: db, setups: newSetupCache()}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnqueueNew writes a brand-new job into the queue tree. Used only by the
// gRPC handler when no row for this JobId exists in either tree yet.
func (s *Store) EnqueueNew(id jobid.JobId, status JobStatus) error {
	data, err := Encode(status)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(queueKey(id), data)
	})
}

// GetQueued reads the current queue-tree status for id, if present.
func (s *Store) GetQueued(id jobid.JobId) (JobStatus, bool, error) {
	return s.get(queueKey(id))
}

// GetFinished reads the current finished-tree status for id, if present.
func (s *Store) GetFinished(id jobid.JobId) (JobStatus, bool, error) {
	return s.get(finishedKey(id))
}

func (s *Store) get(key []byte) (JobStatus, bool, error) {
	var status JobStatus
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			status, err = Decode(val)
			return err
		})
	})
	if err != nil {
		return JobStatus{}, false, fmt.Errorf("store: get: %w", err)
	}
	return status, found, nil
}

// MoveQueuedToFinished atomically removes id from the queue tree and inserts
// the given terminal status into the finished tree. Used for finalization
// (ZkProofFinished or Failed).
func (s *Store) MoveQueuedToFinished(id jobid.JobId, terminal JobStatus) error {
	data, err := Encode(terminal)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(queueKey(id)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(finishedKey(id), data)
	})
}

// RewriteQueued atomically inserts newStatus into the queue tree, removing
// any prior row for id from the finished tree (the case where a previously
// finalized Failed row is being retried and must leave the finished tree).
func (s *Store) RewriteQueued(id jobid.JobId, newStatus JobStatus) error {
	data, err := Encode(newStatus)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(finishedKey(id)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(queueKey(id), data)
	})
}

// ScanQueue lists every JobId currently present in the queue tree, used by
// the worker's crash-recovery pass on startup. Rows whose decoded status is
// already terminal are logged and skipped — they indicate an invariant
// violation from a prior process but must not be resubmitted.
func (s *Store) ScanQueue() ([]jobid.JobId, error) {
	var ids []jobid.JobId
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = queuePrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			keyTail := item.KeyCopy(nil)[len(queuePrefix):]
			id, err := jobid.FromKey(keyTail)
			if err != nil {
				log.Error().Err(err).Msg("store: queue tree contains undecodable key, skipping")
				continue
			}

			var status JobStatus
			if err := item.Value(func(val []byte) error {
				status, err = Decode(val)
				return err
			}); err != nil {
				log.Error().Err(err).Str("job", id.String()).Msg("store: queue tree row undecodable, skipping")
				continue
			}

			if status.Terminal() {
				log.Error().Str("job", id.String()).Str("kind", string(status.Kind)).
					Msg("INVARIANT VIOLATION: terminal status found in queue tree, skipping")
				continue
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan queue: %w", err)
	}
	return ids, nil
}

// ProvingSetup is the program-binary-specific artifact required to submit
// proof requests: large, expensive to compute, shared by every job
// targeting the same guest program.
type ProvingSetup struct {
	ProgramHash  [32]byte
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

func encodeSetup(setup ProvingSetup) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(setup.ProgramHash[:])
	if _, err := setup.ProvingKey.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("store: write proving key: %w", err)
	}
	if _, err := setup.VerifyingKey.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("store: write verifying key: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSetup(data []byte, pk groth16.ProvingKey, vk groth16.VerifyingKey) (ProvingSetup, error) {
	var setup ProvingSetup
	if len(setup.ProgramHash) > len(data) {
		return setup, fmt.Errorf("store: proving setup blob too short")
	}
	copy(setup.ProgramHash[:], data[:32])
	r := bytes.NewReader(data[32:])
	if _, err := pk.ReadFrom(r); err != nil {
		return setup, fmt.Errorf("store: read proving key: %w", err)
	}
	if _, err := vk.ReadFrom(r); err != nil {
		return setup, fmt.Errorf("store: read verifying key: %w", err)
	}
	setup.ProvingKey = pk
	setup.VerifyingKey = vk
	return setup, nil
}

// GetOrComputeSetup reads the config tree for programHash; on a miss it
// calls compute (expensive, blocking), persists the result, and returns it.
// Concurrent callers racing on the same programHash see compute invoked
// exactly once — the in-memory setupCache collapses concurrent misses the
// same way a shared one-shot handle would, and a committed row in the
// config tree makes the result durable across restarts.
func (s *Store) GetOrComputeSetup(programHash [32]byte, compute func() (ProvingSetup, error)) (ProvingSetup, error) {
	return s.setups.getOrCompute(programHash, func() (ProvingSetup, error) {
		var setup ProvingSetup
		found := false
		err := s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(configKey(programHash))
			if err == badger.ErrKeyNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			found = true
			return item.Value(func(val []byte) error {
				pk := groth16.NewProvingKey(ecc.BN254)
				vk := groth16.NewVerifyingKey(ecc.BN254)
				setup, err = decodeSetup(val, pk, vk)
				return err
			})
		})
		if err != nil {
			return setup, fmt.Errorf("store: read proving setup: %w", err)
		}
		if found {
			return setup, nil
		}

		setup, err = compute()
		if err != nil {
			return setup, err
		}
		data, err := encodeSetup(setup)
		if err != nil {
			return setup, err
		}
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(configKey(programHash), data)
		}); err != nil {
			return setup, fmt.Errorf("store: persist proving setup: %w", err)
		}
		return setup, nil
	})
}
