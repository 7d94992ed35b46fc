package receiver

import (
	"context"
	"fmt"
	"net"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// GRPCReceiver handles OTLP gRPC log export requests.
type GRPCReceiver struct {
	collogspb.UnimplementedLogsServiceServer
	pipeline *Pipeline
	server   *grpc.Server
	addr     string
	logger   *zap.Logger
}

// NewGRPCReceiver creates a new gRPC receiver.
func NewGRPCReceiver(addr string, pipeline *Pipeline, logger *zap.Logger) *GRPCReceiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCReceiver{pipeline: pipeline, addr: addr, logger: logger}
}

// Start starts the gRPC server.
func (r *GRPCReceiver) Start() error {
	lis, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)

	// Reflection supports debugging with grpcurl.
	reflection.Register(r.server)

	r.logger.Info("gRPC receiver listening", zap.String("addr", r.addr))
	return r.server.Serve(lis)
}

// Shutdown gracefully shuts down the gRPC server.
func (r *GRPCReceiver) Shutdown(ctx context.Context) error {
	if r.server != nil {
		r.server.GracefulStop()
	}
	return nil
}

// Export implements the LogsService Export RPC.
func (r *GRPCReceiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	rejected, err := r.pipeline.IngestExport(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest logs: %w", err)
	}

	resp := &collogspb.ExportLogsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: rejected,
			ErrorMessage:       "log records without a string body were skipped",
		}
	}
	return resp, nil
}
