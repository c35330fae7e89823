package grpcapi

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/celestiaorg/eq-service/jobid"
	"github.com/celestiaorg/eq-service/store"
)

// Enqueuer is the subset of worker.Worker the frontend needs: handing off
// a freshly admitted job for the worker to pick up.
type Enqueuer interface {
	Enqueue(id jobid.JobId)
}

// Recorder is the subset of the metrics package this frontend reports
// through.
type Recorder interface {
	GrpcRequest(method string)
}

type noopRecorder struct{}

func (noopRecorder) GrpcRequest(string) {}

// Server implements ZkStackServer over a durable job store, using a
// read-then-maybe-admit handler algorithm.
type Server struct {
	store    *store.Store
	worker   Enqueuer
	recorder Recorder
}

// NewServer builds a frontend over st, emitting newly admitted jobs to
// worker.
func NewServer(st *store.Store, worker Enqueuer, recorder Recorder) *Server {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Server{store: st, worker: worker, recorder: recorder}
}

// GetZkStack implements ZkStackServer.
func (s *Server) GetZkStack(ctx context.Context, req *GetZkStackRequest) (*GetZkStackResponse, error) {
	s.recorder.GrpcRequest("GetZkStack")

	id, err := jobid.New(req.Height, req.Namespace, req.Commitment, req.ChainId, req.BatchNumber)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	finished, found, err := s.store.GetFinished(id)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if found {
		return toResponse(finished), nil
	}

	queued, found, err := s.store.GetQueued(id)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if found {
		return toResponse(queued), nil
	}

	if err := s.store.EnqueueNew(id, store.Pending()); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.worker.Enqueue(id)
	log.Info().Str("job", id.String()).Msg("grpcapi: new job admitted")

	return &GetZkStackResponse{
		Status:        StatusDAPending,
		StatusMessage: &StatusMessage{Message: "queued, witness not yet ready"},
	}, nil
}

// toResponse maps a durable job status onto the wire response shape.
func toResponse(s store.JobStatus) *GetZkStackResponse {
	switch s.Kind {
	case store.KindDataAvailabilityPending:
		return &GetZkStackResponse{
			Status:        StatusDAPending,
			StatusMessage: &StatusMessage{Message: "in queue, witness not yet ready"},
		}
	case store.KindDataAvailable:
		return &GetZkStackResponse{
			Status:        StatusDAAvailable,
			StatusMessage: &StatusMessage{Message: "witness ready, awaiting submission"},
		}
	case store.KindZkProofPending:
		var proofId []byte
		if s.RequestId != nil {
			proofId = append([]byte{}, s.RequestId[:]...)
		}
		return &GetZkStackResponse{Status: StatusZkPending, ProofId: proofId}
	case store.KindZkProofFinished:
		return &GetZkStackResponse{Status: StatusZkFinished, Proof: s.Proof}
	case store.KindFailed:
		if s.RetryFromStatus != nil {
			return &GetZkStackResponse{
				Status:        StatusRetryableFailure,
				StatusMessage: &StatusMessage{Message: s.Error, RetryableError: true},
			}
		}
		return &GetZkStackResponse{Status: StatusPermanentFailure, Error: &ErrorMessage{Message: s.Error}}
	default:
		return &GetZkStackResponse{Status: StatusUnspecified}
	}
}
