// Package worker is the job worker and state machine: it consumes job
// handles from a channel, advances each exactly one step per activation,
// commits state atomically through the store, and re-enqueues.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/celestiaorg/eq-service/classify"
	"github.com/celestiaorg/eq-service/da"
	"github.com/celestiaorg/eq-service/jobid"
	"github.com/celestiaorg/eq-service/store"
	"github.com/celestiaorg/eq-service/zk"
)

// Recorder is the subset of the metrics package the worker reports
// through, kept as an interface here so worker never imports metrics
// directly and tests can supply a no-op.
type Recorder interface {
	JobAttempted()
	JobFinished()
	JobError(errorType string)
	ZkProofWaitTime(d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) JobAttempted()                {}
func (noopRecorder) JobFinished()                 {}
func (noopRecorder) JobError(string)              {}
func (noopRecorder) ZkProofWaitTime(time.Duration) {}

// Worker drives the durable job state machine: DataAvailabilityPending ->
// DataAvailable -> ZkProofPending -> ZkProofFinished, or Failed from any
// step. ch carries job handles in; a nil JobId pointer is the shutdown
// sentinel.
type Worker struct {
	store    *store.Store
	da       *da.Client
	zk       *zk.Stage
	timeout  time.Duration
	ch       chan *jobid.JobId
	recorder Recorder
}

// New builds a worker. timeout is applied both to ZK submission and wait.
func New(st *store.Store, daClient *da.Client, zkStage *zk.Stage, timeout time.Duration, recorder Recorder) *Worker {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Worker{
		store:    st,
		da:       daClient,
		zk:       zkStage,
		timeout:  timeout,
		ch:       make(chan *jobid.JobId, 256),
		recorder: recorder,
	}
}

// Enqueue signals the worker to advance id. Safe to call concurrently with
// Run.
func (w *Worker) Enqueue(id jobid.JobId) {
	w.ch <- &id
}

// Shutdown sends the graceful-shutdown sentinel.
func (w *Worker) Shutdown() {
	w.ch <- nil
}

// RecoverQueue scans the store's queue tree and re-enqueues every
// non-terminal job found, the crash-recovery pass run once at startup
// before Run begins consuming.
func (w *Worker) RecoverQueue() error {
	ids, err := w.store.ScanQueue()
	if err != nil {
		return err
	}
	for _, id := range ids {
		log.Info().Str("job", id.String()).Msg("worker: recovering non-terminal job from queue")
		w.Enqueue(id)
	}
	return nil
}

// Run consumes the worker channel until shutdown or ctx is cancelled. Each
// received JobId is processed in its own goroutine so slow DA/ZK I/O never
// head-of-line-blocks other jobs; Run itself never blocks on a transition.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker: context cancelled, stopping")
			return
		case id := <-w.ch:
			if id == nil {
				log.Info().Msg("worker: shutdown signal received, stopping")
				return
			}
			go w.processOne(ctx, *id)
		}
	}
}

// processOne performs at most one state transition for id. Absence from
// the queue tree means the job was already finalized by a concurrent
// activation (or a prior run before a crash); that is not an error.
func (w *Worker) processOne(ctx context.Context, id jobid.JobId) {
	status, found, err := w.store.GetQueued(id)
	if err != nil {
		log.Error().Err(err).Str("job", id.String()).Msg("worker: failed to read queue status")
		return
	}
	if !found {
		return
	}

	w.recorder.JobAttempted()

	switch status.Kind {
	case store.KindDataAvailabilityPending:
		w.stepDAFetch(ctx, id)
	case store.KindDataAvailable:
		w.stepZkSubmit(ctx, id, status)
	case store.KindZkProofPending:
		w.stepZkWait(ctx, id, status)
	default:
		log.Error().Str("job", id.String()).Str("kind", string(status.Kind)).
			Msg("INVARIANT VIOLATION: terminal status observed in queue tree during processing")
	}
}

func (w *Worker) stepDAFetch(ctx context.Context, id jobid.JobId) {
	ns := id.Namespace[:]
	commitment := id.Commitment[:]

	witnessValue, err := da.Fetch(ctx, w.da, id.Height, ns, commitment, id.ChainId, id.BatchNumber)
	if err != nil {
		w.fail(id, classify.DA(err), err)
		return
	}

	newStatus := store.Available(witnessValue)
	if err := w.store.RewriteQueued(id, newStatus); err != nil {
		log.Error().Err(err).Str("job", id.String()).Msg("worker: failed to persist DataAvailable")
		return
	}
	log.Info().Str("job", id.String()).Msg("worker: witness built and verified")
	w.Enqueue(id)
}

func (w *Worker) stepZkSubmit(ctx context.Context, id jobid.JobId, status store.JobStatus) {
	if status.Witness == nil {
		log.Error().Str("job", id.String()).Msg("INVARIANT VIOLATION: DataAvailable status missing witness")
		return
	}

	requestId, err := w.zk.Submit(ctx, *status.Witness, w.timeout)
	if err != nil {
		w.fail(id, classify.Prover(err), err)
		return
	}

	newStatus := store.ZkPending(requestId)
	if err := w.store.RewriteQueued(id, newStatus); err != nil {
		log.Error().Err(err).Str("job", id.String()).Msg("worker: failed to persist ZkProofPending")
		return
	}
	log.Info().Str("job", id.String()).Msg("worker: zk proof requested")
	w.Enqueue(id)
}

func (w *Worker) stepZkWait(ctx context.Context, id jobid.JobId, status store.JobStatus) {
	if status.RequestId == nil {
		log.Error().Str("job", id.String()).Msg("INVARIANT VIOLATION: ZkProofPending status missing request id")
		return
	}

	start := time.Now()
	proof, err := w.zk.Wait(ctx, *status.RequestId, w.timeout)
	w.recorder.ZkProofWaitTime(time.Since(start))
	if err != nil {
		w.fail(id, classify.Prover(err), err)
		return
	}

	finalStatus := store.ZkFinished(proof.Bytes)
	if err := w.store.MoveQueuedToFinished(id, finalStatus); err != nil {
		log.Error().Err(err).Str("job", id.String()).Msg("worker: failed to finalize ZkProofFinished")
		return
	}
	w.recorder.JobFinished()
	log.Info().Str("job", id.String()).Msg("worker: zk proof finished")
}

// fail finalizes id as Failed, carrying a retry-from status when the
// classifier marked the cause retryable.
func (w *Worker) fail(id jobid.JobId, verdict classify.Verdict, cause error) {
	var retryFrom *store.JobStatus
	if verdict.Retryable {
		p := store.Pending()
		retryFrom = &p
	}
	finalStatus := store.Failure(cause, retryFrom)
	if err := w.store.MoveQueuedToFinished(id, finalStatus); err != nil {
		log.Error().Err(err).Str("job", id.String()).Msg("worker: failed to persist Failed status")
		return
	}
	w.recorder.JobError(verdict.MetricLabel)
	log.Warn().Str("job", id.String()).Str("error_type", verdict.MetricLabel).Str("reason", verdict.Reason).
		Bool("retryable", verdict.Retryable).Err(cause).Msg("worker: job failed")
}
