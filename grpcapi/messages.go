// Package grpcapi is the gRPC request frontend: the single GetZkStack
// unary RPC, its wire messages, and the service wrapping the worker and
// store behind a generated-looking service interface.
//
// protoc is not available in this build environment, so the wire messages
// below are hand-authored plain structs (not descriptor-backed generated
// types) carried over a JSON codec registered in codec.go rather than the
// default protobuf codec, which requires compiler-generated reflection
// metadata. See DESIGN.md for the rationale.
package grpcapi

// Status is the response status enum.
type Status int32

const (
	StatusUnspecified      Status = 0
	StatusDAPending        Status = 1
	StatusDAAvailable      Status = 2
	StatusZkPending        Status = 3
	StatusZkFinished       Status = 4
	StatusRetryableFailure Status = 5
	StatusPermanentFailure Status = 6
)

func (s Status) String() string {
	switch s {
	case StatusDAPending:
		return "DA_PENDING"
	case StatusDAAvailable:
		return "DA_AVAILABLE"
	case StatusZkPending:
		return "ZKP_PENDING"
	case StatusZkFinished:
		return "ZKP_FINISHED"
	case StatusRetryableFailure:
		return "RETRYABLE_FAILURE"
	case StatusPermanentFailure:
		return "PERMANENT_FAILURE"
	default:
		return "UNSPECIFIED"
	}
}

// GetZkStackRequest identifies one inclusion-proof job.
type GetZkStackRequest struct {
	Height      uint64 `json:"height"`
	Namespace   []byte `json:"namespace"`
	Commitment  []byte `json:"commitment"`
	ChainId     uint64 `json:"chain_id"`
	BatchNumber uint32 `json:"batch_number"`
}

// StatusMessage carries an in-progress or retryable-failure report.
type StatusMessage struct {
	Message        string `json:"message"`
	RetryableError bool   `json:"retryable_error,omitempty"`
}

// ErrorMessage carries a permanent-failure report.
type ErrorMessage struct {
	Message string `json:"message"`
}

// GetZkStackResponse is a tagged union: exactly one of the payload
// fields is populated, selected by Status.
type GetZkStackResponse struct {
	Status Status `json:"status"`

	StatusMessage *StatusMessage `json:"status_message,omitempty"`
	ProofId       []byte         `json:"proof_id,omitempty"`
	Proof         []byte         `json:"proof,omitempty"`
	Error         *ErrorMessage  `json:"error,omitempty"`
}
