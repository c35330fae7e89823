package worker

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/celestiaorg/eq-service/da"
	"github.com/celestiaorg/eq-service/guest"
	"github.com/celestiaorg/eq-service/jobid"
	"github.com/celestiaorg/eq-service/store"
	"github.com/celestiaorg/eq-service/witness"
	"github.com/celestiaorg/eq-service/zk"
	"github.com/celestiaorg/eq-service/zk/localprover"
)

// rowLeafForTest reproduces witness.rowLeaf's hashing rule locally, the
// same duplication da/fetch_test.go uses to build fixtures without
// exporting the internal helper.
func rowLeafForTest(namespace [29]byte, shares [][]byte) []byte {
	h := sha256.New()
	h.Write(namespace[:])
	for _, s := range shares {
		h.Write(s)
	}
	return h.Sum(nil)
}

// buildOneRowShare builds a single well-formed first share carrying
// payloadFill bytes, matching the layout guest.PayloadHash expects.
func buildOneRowShare(payloadFill byte) []byte {
	share := make([]byte, witness.ShareSize)
	share[witness.NamespaceSize] = 1 // version 0, is_start = 1
	skip := witness.NamespaceSize + witness.ShareInfoBytes + witness.SequenceLenBytes
	share[skip] = payloadFill
	return share
}

// rpcEnvelope mirrors the JSON-RPC 2.0 request shape the go-ethereum rpc
// client sends over HTTP.
type rpcEnvelope struct {
	Method string          `json:"method"`
	ID     json.RawMessage `json:"id"`
}

func newMockDANode(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcEnvelope
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			t.Fatalf("unexpected rpc method %q", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"jsonrpc": "2.0", "id": json.RawMessage(req.ID), "result": result}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode rpc response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// testHarness wires a real Store, a real da.Client against a mock DA node,
// and a zk.Stage backed by zk/localprover, the same collaborators Worker
// uses in production, so these tests exercise the full state machine
// rather than mocking Worker's own logic.
type testHarness struct {
	worker *Worker
	store  *store.Store
	daNode *httptest.Server
}

func newTestHarness(t *testing.T, daResults map[string]any) *testHarness {
	t.Helper()

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	daNode := newMockDANode(t, daResults)
	daClient, err := da.Dial(context.Background(), daNode.URL, "test-token")
	if err != nil {
		t.Fatalf("da.Dial: %v", err)
	}
	t.Cleanup(daClient.Close)

	ctx := context.Background()
	prover, err := localprover.New(ctx, nil)
	if err != nil {
		t.Fatalf("localprover.New: %v", err)
	}
	t.Cleanup(func() { prover.Close(ctx) })

	newCircuit := func() zk.Circuit {
		var c guest.InclusionCircuit
		return &c
	}
	stage := zk.NewStage(prover, st, guest.ProgramHash(), newCircuit)

	w := New(st, daClient, stage, 5*time.Second, nil)
	return &testHarness{worker: w, store: st, daNode: daNode}
}

// buildSingleRowFixture builds a DA node response set and the matching
// JobId for a one-share blob confined to the first row of a two-row
// extended data square.
func buildSingleRowFixture(t *testing.T) (jobid.JobId, map[string]any) {
	t.Helper()
	var ns [29]byte
	ns[0] = 9
	share := buildOneRowShare(0xAB)

	row0Root := rowLeafForTest(ns, [][]byte{share})
	row1Root := sha256.Sum256([]byte("row1"))
	col0 := sha256.Sum256([]byte("col0"))
	col1 := sha256.Sum256([]byte("col1"))

	nodeB := sha256.Sum256(append(append([]byte{}, col0[:]...), col1[:]...))
	rowProof := map[string]any{
		"siblings":  [][]byte{row1Root[:], nodeB[:]},
		"positions": []bool{true, true},
	}

	commitment := make([]byte, 32)
	commitment[0] = 1

	id, err := jobid.New(100, ns[:], commitment, 7, 3)
	if err != nil {
		t.Fatalf("jobid.New: %v", err)
	}

	results := map[string]any{
		"da.GetHeader": map[string]any{
			"header": map[string]any{
				"height": 100,
				"dah": map[string]any{
					"row_roots":    [][]byte{row0Root, row1Root[:]},
					"column_roots": [][]byte{col0[:], col1[:]},
				},
			},
			"status": "ok",
		},
		"da.GetBlob": map[string]any{
			"blob": map[string]any{
				"namespace":  ns[:],
				"commitment": commitment,
				"data":       make([]byte, witness.FirstSparseShareContentSize),
				"index":      0,
			},
		},
		"da.GetShareRangeWithProof": map[string]any{
			"shares":           [][]byte{share},
			"nmt_multiproofs":  []map[string]any{{"siblings": [][]byte{}, "positions": []bool{}}},
			"row_proofs":       []map[string]any{rowProof},
			"row_share_counts": []int{1},
		},
	}
	return id, results
}

// waitForFinished polls the finished tree until id appears or the timeout
// elapses, the same bounded-poll pattern used to observe an asynchronous
// pipeline's terminal state without a dedicated notification channel.
func waitForFinished(t *testing.T, st *store.Store, id jobid.JobId, timeout time.Duration) store.JobStatus {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, found, err := st.GetFinished(id)
		if err != nil {
			t.Fatalf("GetFinished: %v", err)
		}
		if found {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish within %s", id.String(), timeout)
	return store.JobStatus{}
}

func TestWorkerDrivesJobToZkFinished(t *testing.T) {
	id, daResults := buildSingleRowFixture(t)
	h := newTestHarness(t, daResults)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.worker.Run(ctx)

	if err := h.store.EnqueueNew(id, store.Pending()); err != nil {
		t.Fatalf("EnqueueNew: %v", err)
	}
	h.worker.Enqueue(id)

	status := waitForFinished(t, h.store, id, 30*time.Second)
	if status.Kind != store.KindZkProofFinished {
		t.Fatalf("final status kind = %s, want %s (error: %s)", status.Kind, store.KindZkProofFinished, status.Error)
	}
	if len(status.Proof) == 0 {
		t.Fatal("expected non-empty proof bytes in finished status")
	}
}

func TestWorkerPermanentlyFailsOnBadShareProof(t *testing.T) {
	id, daResults := buildSingleRowFixture(t)
	// Corrupt the row proof sibling so the witness never verifies.
	shareRange := daResults["da.GetShareRangeWithProof"].(map[string]any)
	rowProofs := shareRange["row_proofs"].([]map[string]any)
	siblings := rowProofs[0]["siblings"].([][]byte)
	// siblings[0] shares its backing array with the header's row1 root;
	// copy it first so only the proof changes, not the data root.
	siblings[0] = append([]byte(nil), siblings[0]...)
	siblings[0][0] ^= 0xFF

	h := newTestHarness(t, daResults)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.worker.Run(ctx)

	if err := h.store.EnqueueNew(id, store.Pending()); err != nil {
		t.Fatalf("EnqueueNew: %v", err)
	}
	h.worker.Enqueue(id)

	status := waitForFinished(t, h.store, id, 10*time.Second)
	if status.Kind != store.KindFailed {
		t.Fatalf("final status kind = %s, want %s", status.Kind, store.KindFailed)
	}
	if status.RetryFromStatus != nil {
		t.Fatal("bad share proof should be classified permanent, not retryable")
	}
}

func TestWorkerRecoverQueueReenqueuesNonTerminalJobs(t *testing.T) {
	id, daResults := buildSingleRowFixture(t)
	h := newTestHarness(t, daResults)

	if err := h.store.EnqueueNew(id, store.Pending()); err != nil {
		t.Fatalf("EnqueueNew: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.worker.Run(ctx)

	if err := h.worker.RecoverQueue(); err != nil {
		t.Fatalf("RecoverQueue: %v", err)
	}

	status := waitForFinished(t, h.store, id, 30*time.Second)
	if status.Kind != store.KindZkProofFinished {
		t.Fatalf("final status kind = %s, want %s (error: %s)", status.Kind, store.KindZkProofFinished, status.Error)
	}
}
