package receiver

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// HTTPReceiver handles OTLP/HTTP log export requests on /v1/logs.
type HTTPReceiver struct {
	pipeline *Pipeline
	server   *http.Server
	logger   *zap.Logger
}

// NewHTTPReceiver creates a new HTTP receiver.
func NewHTTPReceiver(addr string, pipeline *Pipeline, logger *zap.Logger) *HTTPReceiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &HTTPReceiver{pipeline: pipeline, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/logs", r.handleLogs)

	r.server = &http.Server{Addr: addr, Handler: mux}
	return r
}

// Start starts the HTTP server.
func (r *HTTPReceiver) Start() error {
	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *HTTPReceiver) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

// handleLogs accepts OTLP log export requests, protobuf by default with a
// JSON fallback, gzip-compressed or not.
func (r *HTTPReceiver) handleLogs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer req.Body.Close()

	reader := io.Reader(req.Body)
	if req.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(req.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to decompress: %v", err), http.StatusBadRequest)
			return
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %v", err), http.StatusBadRequest)
		return
	}

	var exportReq collogspb.ExportLogsServiceRequest
	if err := proto.Unmarshal(body, &exportReq); err != nil {
		unmarshaler := protojson.UnmarshalOptions{DiscardUnknown: true}
		if jsonErr := unmarshaler.Unmarshal(body, &exportReq); jsonErr != nil {
			r.logger.Warn("failed to parse logs request",
				zap.Error(err), zap.NamedError("json_error", jsonErr))
			http.Error(w, "Failed to parse request", http.StatusBadRequest)
			return
		}
	}

	rejected, err := r.pipeline.IngestExport(req.Context(), &exportReq)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to ingest logs: %v", err), http.StatusInternalServerError)
		return
	}

	resp := &collogspb.ExportLogsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: rejected,
			ErrorMessage:       "log records without a string body were skipped",
		}
	}
	out, err := proto.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
