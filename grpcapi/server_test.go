package grpcapi

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/celestiaorg/eq-service/jobid"
	"github.com/celestiaorg/eq-service/store"
)

// fakeEnqueuer records admitted jobs instead of driving a real worker.
type fakeEnqueuer struct {
	enqueued []jobid.JobId
}

func (f *fakeEnqueuer) Enqueue(id jobid.JobId) { f.enqueued = append(f.enqueued, id) }

// dialServer boots a Server behind an in-memory bufconn listener and
// returns a connected client, the standard way to exercise a grpc.Server
// without binding a real port.
func dialServer(t *testing.T, impl ZkStackServer) ZkStackClient {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	t.Cleanup(func() { lis.Close() })

	grpcServer := grpc.NewServer()
	RegisterZkStackServer(grpcServer, impl)
	go grpcServer.Serve(lis)
	t.Cleanup(grpcServer.Stop)

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewZkStackClient(conn)
}

func newTestRequest() *GetZkStackRequest {
	return &GetZkStackRequest{
		Height:      6952283,
		Namespace:   make([]byte, jobid.NamespaceSize),
		Commitment:  make([]byte, jobid.CommitmentSize),
		ChainId:     0,
		BatchNumber: 0,
	}
}

func TestGetZkStackAdmitsNewJob(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	enq := &fakeEnqueuer{}
	client := dialServer(t, NewServer(st, enq, nil))

	resp, err := client.GetZkStack(context.Background(), newTestRequest())
	if err != nil {
		t.Fatalf("GetZkStack: %v", err)
	}
	if resp.Status != StatusDAPending {
		t.Fatalf("status = %v, want %v", resp.Status, StatusDAPending)
	}
	if len(enq.enqueued) != 1 {
		t.Fatalf("expected exactly one job enqueued, got %d", len(enq.enqueued))
	}
}

func TestGetZkStackRejectsBadNamespaceLength(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	client := dialServer(t, NewServer(st, &fakeEnqueuer{}, nil))

	req := newTestRequest()
	req.Namespace = make([]byte, jobid.NamespaceSize-1)
	if _, err := client.GetZkStack(context.Background(), req); err == nil {
		t.Fatal("expected InvalidArgument error for bad namespace length")
	}
}

func TestGetZkStackReturnsCachedQueuedStatusWithoutReenqueueing(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	enq := &fakeEnqueuer{}
	client := dialServer(t, NewServer(st, enq, nil))

	req := newTestRequest()
	if _, err := client.GetZkStack(context.Background(), req); err != nil {
		t.Fatalf("first GetZkStack: %v", err)
	}
	if _, err := client.GetZkStack(context.Background(), req); err != nil {
		t.Fatalf("second GetZkStack: %v", err)
	}
	if len(enq.enqueued) != 1 {
		t.Fatalf("expected the job to be enqueued exactly once across repeated polls, got %d", len(enq.enqueued))
	}
}

func TestGetZkStackReportsFinishedJob(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	req := newTestRequest()
	id, err := jobid.New(req.Height, req.Namespace, req.Commitment, req.ChainId, req.BatchNumber)
	if err != nil {
		t.Fatalf("jobid.New: %v", err)
	}
	if err := st.MoveQueuedToFinished(id, store.ZkFinished([]byte{1, 2, 3})); err != nil {
		t.Fatalf("MoveQueuedToFinished: %v", err)
	}

	client := dialServer(t, NewServer(st, &fakeEnqueuer{}, nil))
	resp, err := client.GetZkStack(context.Background(), req)
	if err != nil {
		t.Fatalf("GetZkStack: %v", err)
	}
	if resp.Status != StatusZkFinished {
		t.Fatalf("status = %v, want %v", resp.Status, StatusZkFinished)
	}
	if string(resp.Proof) != "\x01\x02\x03" {
		t.Fatalf("unexpected proof bytes: %v", resp.Proof)
	}
}
