package zk

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/celestiaorg/eq-service/witness"
)

// pollInterval is how often Wait re-checks a pending request's status.
const pollInterval = 2 * time.Second

// Client is the HTTP client for the remote proving network, using a
// bearer-credentialed JSON-over-HTTP transport.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// Dial constructs a prover network client. No handshake is performed; the
// first real request surfaces connectivity problems.
func Dial(baseURL, apiKey string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type submitRequest struct {
	ProgramHash    string           `json:"program_hash"`
	Witness        witness.Witness  `json:"witness"`
	TimeoutSeconds int64            `json:"timeout_seconds"`
}

type submitResponse struct {
	RequestId string `json:"request_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// Submit implements ProverClient.
func (c *Client) Submit(ctx context.Context, programHash [32]byte, w witness.Witness, timeout time.Duration) ([32]byte, error) {
	var zero [32]byte
	body, err := json.Marshal(submitRequest{
		ProgramHash:    hex.EncodeToString(programHash[:]),
		Witness:        w,
		TimeoutSeconds: int64(timeout.Seconds()),
	})
	if err != nil {
		return zero, fmt.Errorf("%w: encode submit request: %v", ErrRPC, err)
	}

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/proofs", body, &resp); err != nil {
		return zero, err
	}
	if cause := classifyStatus(resp.Status); cause != nil {
		return zero, fmt.Errorf("%s: %w", resp.Error, cause)
	}
	raw, err := hex.DecodeString(resp.RequestId)
	if err != nil || len(raw) != 32 {
		return zero, fmt.Errorf("%w: malformed request id %q", ErrRPC, resp.RequestId)
	}
	var id [32]byte
	copy(id[:], raw)
	log.Info().Str("request_id", resp.RequestId).Msg("zk proof requested")
	return id, nil
}

type statusResponse struct {
	Status       string `json:"status"`
	Proof        []byte `json:"proof"`
	PublicValues []byte `json:"public_values"`
	Error        string `json:"error"`
}

// Wait implements ProverClient.
func (c *Client) Wait(ctx context.Context, requestId [32]byte, timeout time.Duration) (Proof, error) {
	deadline := time.Now().Add(timeout)
	path := "/v1/proofs/" + hex.EncodeToString(requestId[:])

	for {
		var resp statusResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return Proof{}, err
		}
		switch resp.Status {
		case "finished":
			return Proof{Bytes: resp.Proof, PublicValues: resp.PublicValues}, nil
		case "pending", "in_progress":
			// fall through to the wait below
		default:
			if cause := classifyStatus(resp.Status); cause != nil {
				return Proof{}, fmt.Errorf("%s: %w", resp.Error, cause)
			}
			return Proof{}, fmt.Errorf("%w: unrecognized prover status %q", ErrRPC, resp.Status)
		}

		if time.Now().After(deadline) {
			return Proof{}, ErrRequestTimedOut
		}
		select {
		case <-ctx.Done():
			return Proof{}, fmt.Errorf("%w: %v", ErrRequestTimedOut, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// do performs one JSON request against the prover network, classifying
// transport-level failures as ErrRPC.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrRPC, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRPC, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: prover returned status %d", ErrRPC, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRPC, err)
	}
	return nil
}
