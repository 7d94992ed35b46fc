// Package main is the entry point for logsieve.
//
// One invocation processes everything waiting in <log_dir>/unprocessed,
// optionally uploads the processed artifacts to object storage, and — when
// the API or OTLP receivers are enabled — keeps serving until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pklundberg/logsieve/internal/api"
	"github.com/pklundberg/logsieve/internal/archive"
	"github.com/pklundberg/logsieve/internal/coerce"
	"github.com/pklundberg/logsieve/internal/config"
	"github.com/pklundberg/logsieve/internal/logging"
	"github.com/pklundberg/logsieve/internal/patterns"
	"github.com/pklundberg/logsieve/internal/processor"
	"github.com/pklundberg/logsieve/internal/receiver"
	"github.com/pklundberg/logsieve/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pattern set and timestamp formats are loaded once and shared
	// read-only by every worker and receiver.
	set, err := loadPatterns(cfg.PatternsFile)
	if err != nil {
		return err
	}
	logger.Info("patterns loaded", zap.Int("count", set.Len()))

	var coerceOpts []coerce.Option
	if cfg.TimestampFormatsFile != "" {
		formats, err := coerce.LoadFormats(cfg.TimestampFormatsFile)
		if err != nil {
			return err
		}
		coerceOpts = append(coerceOpts, coerce.WithFormats(formats))
	}
	coercer := coerce.New(coerceOpts...)

	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}()

	proc := processor.New(set, coercer, logger, processor.Options{
		FoldContinuations: cfg.FoldContinuations,
	})
	runner := processor.NewRunner(proc, store, cfg.LogDir, logger, processor.RunnerOptions{
		Workers: cfg.Workers,
	})

	runs, err := runner.Run(ctx)
	if err != nil {
		// Individual file failures are reported but don't stop the
		// process; the failing files were moved to errors/.
		logger.Error("some files failed to process", zap.Error(err))
	}
	logger.Info("directory pass complete", zap.Int("runs", len(runs)))

	if cfg.S3.Enabled {
		uploader, err := archive.New(ctx, archive.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			KeyPrefix: cfg.S3.KeyPrefix,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}, logger)
		if err != nil {
			return err
		}
		n, err := uploader.UploadDir(ctx, cfg.LogDir+"/"+processor.DirProcessed)
		if err != nil {
			return fmt.Errorf("archiving processed logs: %w", err)
		}
		logger.Info("processed logs archived", zap.Int("files", n))
	}

	if !cfg.API.Enabled && !cfg.OTLP.Enabled {
		return nil
	}

	// Serve mode: REST API and/or OTLP receivers until interrupted.
	errChan := make(chan error, 3)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Addr, store, set)
		go func() {
			logger.Info("API server listening", zap.String("addr", cfg.API.Addr))
			if err := apiServer.Start(); err != nil {
				errChan <- fmt.Errorf("API server: %w", err)
			}
		}()
	}

	var grpcReceiver *receiver.GRPCReceiver
	var httpReceiver *receiver.HTTPReceiver
	if cfg.OTLP.Enabled {
		pipeline, err := receiver.NewPipeline(ctx, set, coercer, store, logger)
		if err != nil {
			return err
		}
		grpcReceiver = receiver.NewGRPCReceiver(cfg.OTLP.GRPCAddr, pipeline, logger)
		httpReceiver = receiver.NewHTTPReceiver(cfg.OTLP.HTTPAddr, pipeline, logger)
		go func() {
			if err := grpcReceiver.Start(); err != nil {
				errChan <- fmt.Errorf("OTLP gRPC receiver: %w", err)
			}
		}()
		go func() {
			logger.Info("OTLP HTTP receiver listening", zap.String("addr", cfg.OTLP.HTTPAddr))
			if err := httpReceiver.Start(); err != nil {
				errChan <- fmt.Errorf("OTLP HTTP receiver: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("API server shutdown", zap.Error(err))
		}
	}
	if grpcReceiver != nil {
		if err := grpcReceiver.Shutdown(shutdownCtx); err != nil {
			logger.Warn("gRPC receiver shutdown", zap.Error(err))
		}
	}
	if httpReceiver != nil {
		if err := httpReceiver.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP receiver shutdown", zap.Error(err))
		}
	}
	return nil
}

func loadPatterns(path string) (*patterns.Set, error) {
	if path == "" {
		return patterns.Default(), nil
	}
	return patterns.Load(path)
}
