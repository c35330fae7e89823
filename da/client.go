// Package da is the JSON-RPC client for the external DA node (header fetch,
// blob fetch, share-range fetch with proofs) and the fetch stage that turns
// those responses into a locally-verified witness. The DA node itself is an
// external collaborator — only the client surface to it lives here.
package da

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
)

// Sentinel errors the classifier matches against with errors.Is. Wrapping
// these (via fmt.Errorf("...: %w", ErrX)) at the call site preserves
// context for logs while keeping classification exact.
var (
	ErrHeaderNotFound        = fmt.Errorf("header: not found")
	ErrHeaderFromFuture      = fmt.Errorf("header: given height is from the future")
	ErrHeaderSyncing         = fmt.Errorf("header: syncing in progress")
	ErrBlobNotFound          = fmt.Errorf("blob: not found")
	ErrMissingBlobIndex      = fmt.Errorf("blob: missing index")
	ErrShareRangeProofFailed = fmt.Errorf("share range: sanity check failed")
	ErrTransport             = fmt.Errorf("da client: transport error")
)

// authTransport attaches a bearer token to every outbound request via
// headers.
type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(req)
}

// Client is a thin JSON-RPC client over the DA node's header/blob/share
// endpoints.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the DA node's JSON-RPC endpoint.
func Dial(ctx context.Context, endpoint, authToken string) (*Client, error) {
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: authTransport{token: authToken, base: http.DefaultTransport},
	}
	rc, err := rpc.DialHTTPWithClient(endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("da: dial %s: %w", endpoint, err)
	}
	log.Info().Str("endpoint", endpoint).Msg("DA node client connected")
	return &Client{rpc: rc}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// DataAvailabilityHeader is the subset of a DA block header needed to
// reconstruct row layout and the data root.
type DataAvailabilityHeader struct {
	RowRoots    [][]byte `json:"row_roots"`
	ColumnRoots [][]byte `json:"column_roots"`
}

// Hash computes the sha256-tagged data root of the header's DAH, the claim
// root every inclusion proof closes under.
func (h DataAvailabilityHeader) Hash() []byte {
	return dahHash(h.RowRoots, h.ColumnRoots)
}

// Header is the DA block header fetched by height.
type Header struct {
	Height uint64                 `json:"height"`
	Dah    DataAvailabilityHeader `json:"dah"`
}

// GetHeader fetches the DA block header at height, classifying known error
// shapes into the sentinels above.
func (c *Client) GetHeader(ctx context.Context, height uint64) (Header, error) {
	var resp struct {
		Header *Header `json:"header"`
		Status string  `json:"status"`
	}
	if err := c.rpc.CallContext(ctx, &resp, "da.GetHeader", height); err != nil {
		return Header{}, classifyRPCError(err)
	}
	switch resp.Status {
	case "", "ok":
	case "not_found":
		return Header{}, ErrHeaderNotFound
	case "future_height":
		return Header{}, ErrHeaderFromFuture
	case "syncing":
		return Header{}, ErrHeaderSyncing
	default:
		return Header{}, fmt.Errorf("da: unrecognized header status %q", resp.Status)
	}
	if resp.Header == nil {
		return Header{}, ErrHeaderNotFound
	}
	return *resp.Header, nil
}

// Blob is a single published blob's metadata, enough to locate its shares
// in the extended data square.
type Blob struct {
	Namespace  []byte `json:"namespace"`
	Commitment []byte `json:"commitment"`
	Data       []byte `json:"data"`
	// Index is the blob's starting share index in the extended data
	// square. Absent (nil) when the DA node cannot locate the blob's
	// position — the fetch stage treats that as ErrMissingBlobIndex.
	Index *int `json:"index"`
}

// GetBlob fetches a blob by (height, namespace, commitment).
func (c *Client) GetBlob(ctx context.Context, height uint64, namespace, commitment []byte) (Blob, error) {
	var resp struct {
		Blob  *Blob  `json:"blob"`
		Error string `json:"error"`
	}
	if err := c.rpc.CallContext(ctx, &resp, "da.GetBlob", height, namespace, commitment); err != nil {
		return Blob{}, classifyRPCError(err)
	}
	if resp.Error == "not_found" || resp.Blob == nil {
		return Blob{}, ErrBlobNotFound
	}
	return *resp.Blob, nil
}

// ShareRangeResult is a contiguous run of shares together with the NMT and
// row proofs binding them to the data root.
type ShareRangeResult struct {
	Shares         [][]byte      `json:"shares"`
	NmtMultiproofs []RawNMTProof `json:"nmt_multiproofs"`
	RowProofs      []RawNMTProof `json:"row_proofs"`
	RowShareCounts []int         `json:"row_share_counts"`
}

// RawNMTProof is the wire shape of a proof before it is adapted into the
// witness package's verification types.
type RawNMTProof struct {
	Siblings  [][]byte `json:"siblings"`
	Positions []bool   `json:"positions"`
}

// GetShareRange fetches shares [start, start+length) with their inclusion
// proofs.
func (c *Client) GetShareRange(ctx context.Context, height uint64, start, length int) (ShareRangeResult, error) {
	var resp ShareRangeResult
	if err := c.rpc.CallContext(ctx, &resp, "da.GetShareRangeWithProof", height, start, length); err != nil {
		return ShareRangeResult{}, classifyRPCError(err)
	}
	return resp, nil
}

// classifyRPCError maps a raw transport-level error (dial failures,
// timeouts, connection resets, node restarting) into ErrTransport so the
// classifier treats it uniformly as retryable.
func classifyRPCError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
