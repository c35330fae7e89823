// Command eq-service runs the inclusion-proof orchestration service as a
// single binary with subcommands: a long-running `start` plus small
// operator-facing utility verbs.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/celestiaorg/eq-service/config"
	"github.com/celestiaorg/eq-service/da"
	"github.com/celestiaorg/eq-service/grpcapi"
	"github.com/celestiaorg/eq-service/guest"
	"github.com/celestiaorg/eq-service/jobid"
	"github.com/celestiaorg/eq-service/metrics"
	"github.com/celestiaorg/eq-service/store"
	"github.com/celestiaorg/eq-service/worker"
	"github.com/celestiaorg/eq-service/zk"
)

var rootCmd = &cobra.Command{
	Use:   "eq-service",
	Short: "Inclusion-proof orchestration service for Celestia blob data",
}

func newCircuit() zk.Circuit {
	var c guest.InclusionCircuit
	return &c
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the gRPC and metrics servers and the job worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if cfg.ExpectedGuestHash != "" {
			hash := guest.ProgramHash()
			actual := base64.StdEncoding.EncodeToString(hash[:])
			if actual != cfg.ExpectedGuestHash {
				log.Fatal().Str("expected", cfg.ExpectedGuestHash).Str("actual", actual).
					Msg("guest program hash pinning check failed, refusing to start")
			}
			log.Info().Msg("guest program hash matches EXPECTED_GUEST_PROGRAM_HASH")
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		daClient, err := da.Dial(cmd.Context(), cfg.DANodeHTTP, cfg.DANodeAuthToken)
		if err != nil {
			return fmt.Errorf("dial da node: %w", err)
		}
		defer daClient.Close()

		prover := zk.Dial(cfg.ProverAPIURL, cfg.ProverAPIKey)
		zkStage := zk.NewStage(prover, st, guest.ProgramHash(), newCircuit)

		m := metrics.New(cfg.ProofGenTimeout)
		w := worker.New(st, daClient, zkStage, cfg.ProofGenTimeout, m)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := w.RecoverQueue(); err != nil {
			return fmt.Errorf("recover queue: %w", err)
		}
		go w.Run(ctx)
		go m.RunQuantileSummaryLoop(ctx, time.Minute)

		grpcServer := grpc.NewServer()
		grpcapi.RegisterZkStackServer(grpcServer, grpcapi.NewServer(st, w, m))
		lis, err := net.Listen("tcp", cfg.ServiceSocket)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.ServiceSocket, err)
		}
		go func() {
			log.Info().Str("addr", cfg.ServiceSocket).Msg("grpc server listening")
			if err := grpcServer.Serve(lis); err != nil {
				log.Error().Err(err).Msg("grpc server stopped")
			}
		}()

		metricsServer := &http.Server{Addr: cfg.MetricsSocket, Handler: m.Handler()}
		go func() {
			log.Info().Str("addr", cfg.MetricsSocket).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()

		<-ctx.Done()
		log.Info().Msg("shutting down")
		w.Shutdown()
		grpcServer.GracefulStop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return metricsServer.Shutdown(shutdownCtx)
	},
}

var guestCheckCmd = &cobra.Command{
	Use:   "guest-check <height> <namespace-b64> <commitment-b64> <chainId> <batchNumber>",
	Short: "Fetch a witness from the DA node and run the guest program's verification locally",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		var height uint64
		if _, err := fmt.Sscanf(args[0], "%d", &height); err != nil {
			return fmt.Errorf("parse height: %w", err)
		}
		namespace, err := base64.StdEncoding.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("decode namespace: %w", err)
		}
		commitment, err := base64.StdEncoding.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("decode commitment: %w", err)
		}
		var chainId uint64
		if _, err := fmt.Sscanf(args[3], "%d", &chainId); err != nil {
			return fmt.Errorf("parse chainId: %w", err)
		}
		var batchNumber uint32
		if _, err := fmt.Sscanf(args[4], "%d", &batchNumber); err != nil {
			return fmt.Errorf("parse batchNumber: %w", err)
		}

		daClient, err := da.Dial(cmd.Context(), cfg.DANodeHTTP, cfg.DANodeAuthToken)
		if err != nil {
			return fmt.Errorf("dial da node: %w", err)
		}
		defer daClient.Close()

		w, err := da.Fetch(cmd.Context(), daClient, height, namespace, commitment, chainId, batchNumber)
		if err != nil {
			return fmt.Errorf("fetch witness: %w", err)
		}

		output, err := guest.Verify(w)
		if err != nil {
			return fmt.Errorf("guest verification failed: %w", err)
		}

		encoded := output.Encode()
		fmt.Printf("guest verification succeeded\n")
		fmt.Printf("  keccak_hash:  %x\n", output.KeccakHash)
		fmt.Printf("  data_root:    %x\n", output.DataRoot)
		fmt.Printf("  batch_number: %d\n", output.BatchNumber)
		fmt.Printf("  chain_id:     %d\n", output.ChainId)
		fmt.Printf("  public_values (hex): %x\n", encoded)
		return nil
	},
}

var blobCheckCmd = &cobra.Command{
	Use:   "blob-check <height> <namespace-b64> <commitment-b64> <chainId> <batchNumber>",
	Short: "Submit a single inclusion request over gRPC and poll until it terminates",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		var height uint64
		if _, err := fmt.Sscanf(args[0], "%d", &height); err != nil {
			return fmt.Errorf("parse height: %w", err)
		}
		namespace, err := base64.StdEncoding.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("decode namespace: %w", err)
		}
		commitment, err := base64.StdEncoding.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("decode commitment: %w", err)
		}
		var chainId uint64
		if _, err := fmt.Sscanf(args[3], "%d", &chainId); err != nil {
			return fmt.Errorf("parse chainId: %w", err)
		}
		var batchNumber uint32
		if _, err := fmt.Sscanf(args[4], "%d", &batchNumber); err != nil {
			return fmt.Errorf("parse batchNumber: %w", err)
		}
		if _, err := jobid.New(height, namespace, commitment, chainId, batchNumber); err != nil {
			return fmt.Errorf("invalid request: %w", err)
		}

		conn, err := grpc.NewClient(cfg.ServiceSocket, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dial service: %w", err)
		}
		defer conn.Close()
		client := grpcapi.NewZkStackClient(conn)

		req := &grpcapi.GetZkStackRequest{
			Height: height, Namespace: namespace, Commitment: commitment,
			ChainId: chainId, BatchNumber: batchNumber,
		}

		for {
			resp, err := client.GetZkStack(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("GetZkStack: %w", err)
			}
			fmt.Printf("status: %s\n", resp.Status)
			switch resp.Status {
			case grpcapi.StatusZkFinished:
				fmt.Printf("proof (hex): %x\n", resp.Proof)
				return nil
			case grpcapi.StatusRetryableFailure, grpcapi.StatusPermanentFailure:
				return fmt.Errorf("job terminated: %s", resp.Status)
			}
			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			case <-time.After(2 * time.Second):
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(guestCheckCmd)
	rootCmd.AddCommand(blobCheckCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("eq-service exited with error")
	}
}
