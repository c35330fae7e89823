package da

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/celestiaorg/eq-service/witness"
)

func TestShareCountForBlob(t *testing.T) {
	cases := []struct {
		dataLen int
		want    int
	}{
		{0, 1},
		{witness.FirstSparseShareContentSize, 1},
		{witness.FirstSparseShareContentSize + 1, 2},
		{witness.FirstSparseShareContentSize + witness.ContinuationSparseShareContentSize, 2},
		{witness.FirstSparseShareContentSize + witness.ContinuationSparseShareContentSize + 1, 3},
	}
	for _, c := range cases {
		if got := shareCountForBlob(c.dataLen); got != c.want {
			t.Errorf("shareCountForBlob(%d) = %d, want %d", c.dataLen, got, c.want)
		}
	}
}

// rowLeafForTest reproduces witness.rowLeaf's hashing rule (unexported, so
// test fixtures recompute it) to build row roots a real NMT multiproof
// would also resolve to.
func rowLeafForTest(namespace [29]byte, shares [][]byte) []byte {
	h := sha256.New()
	h.Write(namespace[:])
	for _, s := range shares {
		h.Write(s)
	}
	return h.Sum(nil)
}

// rpcEnvelope mirrors the JSON-RPC 2.0 request shape the go-ethereum rpc
// client sends over HTTP.
type rpcEnvelope struct {
	Method string          `json:"method"`
	ID     json.RawMessage `json:"id"`
	Params json.RawMessage `json:"params"`
}

// newMockDANode starts an HTTP server speaking just enough JSON-RPC 2.0 to
// satisfy Client: one canned result per method name. When captured is
// non-nil, the raw params array of every call is recorded into it keyed by
// method name, so a test can assert on what Fetch actually requested rather
// than just on the canned response it was handed back.
func newMockDANode(t *testing.T, results map[string]any, captured map[string]json.RawMessage) *httptest.Server {
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
		if captured != nil {
			captured[req.Method] = req.Params
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      json.RawMessage(req.ID),
			"result":  result,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode rpc response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// buildTwoRowFixture constructs a blob whose shares span two rows, with
// row proofs that independently close to the same apex, exercising the
// row-boundary case where a single blob's share range is not confined to
// one row of the extended data square.
func buildTwoRowFixture(t *testing.T) (namespace [29]byte, rowRoots, columnRoots [][]byte, shares [][]byte, rowProofs []RawNMTProof, apex []byte) {
	t.Helper()
	namespace[0] = 7

	share0 := make([]byte, witness.ShareSize)
	share0[0] = 0x11
	share1 := make([]byte, witness.ShareSize)
	share1[0] = 0x22

	row0Root := rowLeafForTest(namespace, [][]byte{share0})
	row1Root := rowLeafForTest(namespace, [][]byte{share1})

	col0 := sha256.Sum256([]byte("col0"))
	col1 := sha256.Sum256([]byte("col1"))

	rowRoots = [][]byte{row0Root, row1Root}
	columnRoots = [][]byte{col0[:], col1[:]}
	apex = dahHash(rowRoots, columnRoots)

	nodeB := sha256.Sum256(append(append([]byte{}, col0[:]...), col1[:]...))

	rowProofs = []RawNMTProof{
		{Siblings: [][]byte{row1Root, nodeB[:]}, Positions: []bool{true, true}},
		{Siblings: [][]byte{row0Root, nodeB[:]}, Positions: []bool{false, true}},
	}
	shares = [][]byte{share0, share1}
	return
}

func TestFetchHappyPathAcrossRowBoundary(t *testing.T) {
	namespace, rowRoots, columnRoots, shares, rowProofs, apex := buildTwoRowFixture(t)
	// edsSize = len(rowRoots) = 2, so odsSize = 1: blobIndex 3 lands on
	// firstRow = 3/2 = 1 with odsIndex = 3 - 1*1 = 2, genuinely distinct
	// from blobIndex. Fetch must request the share range starting at
	// odsIndex, not blobIndex.
	blobIndex := 3
	wantOdsIndex := 2
	dataLen := witness.FirstSparseShareContentSize + 1 // forces a 2-share blob
	wantShareCount := 2

	captured := make(map[string]json.RawMessage)
	server := newMockDANode(t, map[string]any{
		"da.GetHeader": map[string]any{
			"header": map[string]any{
				"height": 42,
				"dah": map[string]any{
					"row_roots":    rowRoots,
					"column_roots": columnRoots,
				},
			},
			"status": "ok",
		},
		"da.GetBlob": map[string]any{
			"blob": map[string]any{
				"namespace":  namespace[:],
				"commitment": []byte{1, 2, 3},
				"data":       make([]byte, dataLen),
				"index":      blobIndex,
			},
		},
		"da.GetShareRangeWithProof": map[string]any{
			"shares": shares,
			"nmt_multiproofs": []map[string]any{
				{"siblings": [][]byte{}, "positions": []bool{}},
				{"siblings": [][]byte{}, "positions": []bool{}},
			},
			"row_proofs":       rowProofs,
			"row_share_counts": []int{1, 1},
		},
	}, captured)

	client, err := Dial(context.Background(), server.URL, "test-token")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w, err := Fetch(ctx, client, 42, namespace[:], []byte{1, 2, 3}, 7, 9)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(w.DataRoot[:]) != string(apex) {
		t.Fatalf("witness data root does not match computed apex")
	}
	if w.ChainId != 7 || w.BatchNumber != 9 {
		t.Fatalf("witness chain/batch metadata mismatch: %+v", w)
	}

	rawParams, ok := captured["da.GetShareRangeWithProof"]
	if !ok {
		t.Fatal("da.GetShareRangeWithProof was never called")
	}
	var params []int
	if err := json.Unmarshal(rawParams, &params); err != nil {
		t.Fatalf("decode captured params: %v", err)
	}
	if len(params) != 3 {
		t.Fatalf("da.GetShareRangeWithProof params = %v, want 3 positional args", params)
	}
	if params[1] != wantOdsIndex {
		t.Fatalf("da.GetShareRangeWithProof start = %d, want odsIndex %d (not blobIndex %d)", params[1], wantOdsIndex, blobIndex)
	}
	if params[2] != wantShareCount {
		t.Fatalf("da.GetShareRangeWithProof length = %d, want %d", params[2], wantShareCount)
	}
}

func TestFetchRejectsMissingBlobIndex(t *testing.T) {
	namespace, rowRoots, columnRoots, _, _, _ := buildTwoRowFixture(t)

	server := newMockDANode(t, map[string]any{
		"da.GetHeader": map[string]any{
			"header": map[string]any{
				"height": 42,
				"dah": map[string]any{
					"row_roots":    rowRoots,
					"column_roots": columnRoots,
				},
			},
			"status": "ok",
		},
		"da.GetBlob": map[string]any{
			"blob": map[string]any{
				"namespace":  namespace[:],
				"commitment": []byte{1, 2, 3},
				"data":       []byte{0xAA},
				"index":      nil,
			},
		},
	}, nil)

	client, err := Dial(context.Background(), server.URL, "test-token")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	_, err = Fetch(context.Background(), client, 42, namespace[:], []byte{1, 2, 3}, 7, 9)
	if err == nil {
		t.Fatal("expected error for missing blob index")
	}
}

func TestFetchRejectsBadShareProof(t *testing.T) {
	namespace, rowRoots, columnRoots, shares, rowProofs, _ := buildTwoRowFixture(t)
	// Corrupt one sibling so the row proof no longer closes to the real apex.
	rowProofs[0].Siblings[1][0] ^= 0xFF

	server := newMockDANode(t, map[string]any{
		"da.GetHeader": map[string]any{
			"header": map[string]any{
				"height": 42,
				"dah": map[string]any{
					"row_roots":    rowRoots,
					"column_roots": columnRoots,
				},
			},
			"status": "ok",
		},
		"da.GetBlob": map[string]any{
			"blob": map[string]any{
				"namespace":  namespace[:],
				"commitment": []byte{1, 2, 3},
				"data":       make([]byte, witness.FirstSparseShareContentSize+1),
				"index":      3,
			},
		},
		"da.GetShareRangeWithProof": map[string]any{
			"shares": shares,
			"nmt_multiproofs": []map[string]any{
				{"siblings": [][]byte{}, "positions": []bool{}},
				{"siblings": [][]byte{}, "positions": []bool{}},
			},
			"row_proofs":       rowProofs,
			"row_share_counts": []int{1, 1},
		},
	}, nil)

	client, err := Dial(context.Background(), server.URL, "test-token")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	_, err = Fetch(context.Background(), client, 42, namespace[:], []byte{1, 2, 3}, 7, 9)
	if err == nil {
		t.Fatal("expected share range proof failure")
	}
}
