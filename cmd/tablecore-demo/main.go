// Command tablecore-demo boots the table core's ambient stack (config,
// logging, tracing, debug/metrics) and drives one table through its
// lifecycle: partitions get created and committed, a periodic expire pass
// retires the old ones, and the commit coordinator's write guard is wired to
// the expire controller. The demo itself issues no commit against an
// expired partition.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakestore/tablecore/commit"
	"github.com/lakestore/tablecore/compressors"
	"github.com/lakestore/tablecore/config"
	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/expire"
	"github.com/lakestore/tablecore/external"
	"github.com/lakestore/tablecore/hooks"
	"github.com/lakestore/tablecore/localfs"
	"github.com/lakestore/tablecore/partition"
	"github.com/lakestore/tablecore/snapshot"
	"github.com/lakestore/tablecore/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	tp, tracerCleanup, err := telemetry.NewTracerProvider(cfg.Tracing, logger)
	if err != nil {
		logger.Error("failed to initialize tracer provider", "error", err)
		os.Exit(1)
	}
	defer tracerCleanup()
	tracer := tp.Tracer("tablecore-demo")

	var debugServer *telemetry.DebugServer
	var hostSampler *telemetry.HostSampler
	if cfg.Debug.Enabled {
		debugServer = telemetry.NewDebugServer(cfg.Debug, logger)
		go func() {
			if err := debugServer.Start(); err != nil {
				logger.Error("debug server exited", "error", err)
			}
		}()
		if cfg.Debug.HostSampling {
			hostSampler = telemetry.NewHostSampler(cfg.DataDir, 2*time.Second, logger)
			hostSampler.Start()
		}
	}

	fio, err := localfs.New(cfg.DataDir)
	if err != nil {
		logger.Error("failed to initialize local file store", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	reg := snapshot.NewRegistry(logger, tracer)
	hookManager := hooks.NewHookManager(logger)
	catalog := newMemoryCatalog(logger)
	coreOpts := config.NewCoreOptions(cfg.Table)
	compressor := compressors.NewZstdCompressor()

	commitOpts := commit.Options{
		Registry:   reg,
		Hooks:      hookManager,
		CommitUser: "tablecore-demo",
		Logger:     logger,
		Tracer:     tracer,
	}
	commit.FromCoreOptions(&commitOpts, cfg.Commit, logger)
	coordinator := commit.New(commitOpts)

	expireOpts := expire.Options{
		FileIO:          fio,
		StateDir:        "expire-state",
		Registry:        reg,
		Partitions:      catalog,
		Handler:         catalog,
		Committer:       coordinator,
		PartitionSchema: partition.Schema{{Name: "dt", Type: partition.FieldString}},
		Hooks:           hookManager,
		Logger:          logger,
		Tracer:          tracer,
	}
	expire.FromCoreOptions(&expireOpts, coreOpts)

	ctx := context.Background()
	controller, err := expire.New(ctx, expireOpts)
	if err != nil {
		logger.Error("failed to initialize partition expire controller", "error", err)
		os.Exit(1)
	}
	coordinator.SetExpired(controller)

	seedTable(ctx, logger, coordinator, catalog, fio, compressor)

	checkInterval := expireOpts.CheckInterval
	if checkInterval <= 0 {
		checkInterval = time.Hour
	}
	expireDone := make(chan struct{})
	stopExpire := make(chan struct{})
	go runExpireLoop(ctx, logger, controller, checkInterval, stopExpire, expireDone)

	logger.Info("tablecore-demo running, press Ctrl+C to exit")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received, stopping")
	close(stopExpire)
	<-expireDone

	hookManager.Stop()
	if hostSampler != nil {
		hostSampler.Stop()
	}
	if debugServer != nil {
		debugServer.Stop()
	}
	logger.Info("tablecore-demo exited gracefully")
}

// seedTable commits a handful of partitions so the demo has something for
// the expire pass and the write guard to act on, persisting each published
// snapshot as a compressed pointer file alongside the in-memory registry.
func seedTable(ctx context.Context, logger *slog.Logger, coordinator *commit.Coordinator, catalog *memoryCatalog, fio external.FileIO, compressor core.Compressor) {
	partitions := []core.Partition{
		{Fields: []string{"dt"}, Values: map[string]string{"dt": "20230101"}},
		{Fields: []string{"dt"}, Values: map[string]string{"dt": "20230102"}},
	}
	if err := catalog.CreatePartitions(ctx, partitions); err != nil {
		logger.Error("failed to seed partitions in catalog", "error", err)
		return
	}
	for i, p := range partitions {
		msg := commit.Message{
			Partition: p,
			Bucket:    0,
			Data:      &commit.DataIncrement{NewFiles: []core.DataFileMeta{{Path: "seed-" + p.Values["dt"]}}},
		}
		snap, err := coordinator.Commit(ctx, int64(i), []commit.Message{msg})
		if err != nil {
			logger.Error("failed to commit seed partition", "partition", p.String(), "error", err)
			return
		}
		if err := snapshot.PersistSnapshot(ctx, fio, "manifests", snap, compressor); err != nil {
			logger.Error("failed to persist seed snapshot", "snapshot", snap.ID, "error", err)
		}
	}
	logger.Info("seeded demo table", "partitions", len(partitions))
}

func runExpireLoop(ctx context.Context, logger *slog.Logger, controller *expire.Controller, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var identifier int64 = 1000

	for {
		select {
		case <-ticker.C:
			identifier++
			ran, err := controller.Expire(ctx, time.Now(), identifier)
			if err != nil {
				logger.Error("expire pass failed", "error", err)
				continue
			}
			if ran {
				logger.Info("expire pass completed")
			}
		case <-stop:
			return
		}
	}
}
