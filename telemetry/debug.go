package telemetry

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/arl/statsviz"
	"github.com/lakestore/tablecore/config"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// DebugServer serves expvar metrics, pprof, and a statsviz live dashboard
// over an isolated HTTP mux, independent of any data-plane listener.
type DebugServer struct {
	server  *http.Server
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
}

// NewDebugServer wires the debug mux per cfg. Metrics and pprof are always
// registered; statsviz is gated on cfg.StatsvizEnabled.
func NewDebugServer(cfg config.DebugConfig, logger *slog.Logger) *DebugServer {
	logger = logger.With("component", "debug-server")
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", expvar.Handler())

	if cfg.StatsvizEnabled {
		if err := statsviz.Register(mux, statsviz.Root("/viz"), statsviz.SendFrequency(250*time.Millisecond)); err != nil {
			logger.Warn("failed to register statsviz", "error", err)
		} else {
			logger.Info("statsviz dashboard available at /viz")
		}
	}

	addr := cfg.ListenAddress
	if addr == "" {
		addr = "127.0.0.1:6060"
	}

	return &DebugServer{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start runs the debug server; it blocks until Stop is called or the
// listener fails.
func (s *DebugServer) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("debug server listening", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("debug server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the debug server down.
func (s *DebugServer) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("debug server shutdown failed", "error", err)
	}
}

// HostSampler periodically publishes CPU, memory and disk usage to expvar,
// sampled at the configured diskPath (a table's data directory).
type HostSampler struct {
	cpuUsagePercent *expvar.Float
	memUsagePercent *expvar.Float
	diskUsagePercent *expvar.Float
	diskPath        string
	interval        time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
	logger          *slog.Logger
}

// NewHostSampler creates a sampler; diskPath should be the directory whose
// filesystem usage is of interest (typically the table's data directory).
func NewHostSampler(diskPath string, interval time.Duration, logger *slog.Logger) *HostSampler {
	return &HostSampler{
		cpuUsagePercent:  expvar.NewFloat("tablecore_host_cpu_usage_percent"),
		memUsagePercent:  expvar.NewFloat("tablecore_host_mem_usage_percent"),
		diskUsagePercent: expvar.NewFloat("tablecore_host_disk_usage_percent"),
		diskPath:         diskPath,
		interval:         interval,
		stopCh:           make(chan struct{}),
		logger:           logger.With("component", "host-sampler"),
	}
}

func (s *HostSampler) Start() {
	s.logger.Info("starting host metrics sampler", "interval", s.interval)
	s.wg.Add(1)
	go s.loop()
}

func (s *HostSampler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *HostSampler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	sampleWindow := s.interval - time.Second
	if sampleWindow <= 0 {
		sampleWindow = s.interval / 2
	}

	for {
		select {
		case <-ticker.C:
			if pcts, err := cpu.Percent(sampleWindow, false); err == nil && len(pcts) > 0 {
				s.cpuUsagePercent.Set(pcts[0])
			}
			if vm, err := mem.VirtualMemory(); err == nil {
				s.memUsagePercent.Set(vm.UsedPercent)
			}
			if du, err := disk.Usage(s.diskPath); err == nil {
				s.diskUsagePercent.Set(du.UsedPercent)
			}
		case <-s.stopCh:
			return
		}
	}
}
