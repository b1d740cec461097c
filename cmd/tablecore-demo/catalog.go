package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lakestore/tablecore/core"
)

// memoryCatalog is a demo-only stand-in for the external partition catalog
// a real deployment would plug in (a metastore, a DynamoDB table, whatever
// the host runs). It satisfies both external.PartitionHandler and
// external.PartitionEnumerator by tracking partitions in memory.
type memoryCatalog struct {
	mu     sync.Mutex
	logger *slog.Logger
	live   map[string]core.Partition
}

func newMemoryCatalog(logger *slog.Logger) *memoryCatalog {
	return &memoryCatalog{logger: logger, live: make(map[string]core.Partition)}
}

func (c *memoryCatalog) CreatePartitions(ctx context.Context, partitions []core.Partition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range partitions {
		c.live[p.Key()] = p
	}
	c.logger.Info("catalog: created partitions", "count", len(partitions))
	return nil
}

func (c *memoryCatalog) DropPartitions(ctx context.Context, partitions []core.Partition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range partitions {
		delete(c.live, p.Key())
	}
	c.logger.Info("catalog: dropped partitions", "count", len(partitions))
	return nil
}

func (c *memoryCatalog) AlterPartitions(ctx context.Context, stats []core.PartitionStatistics) error {
	c.logger.Debug("catalog: alter partitions", "count", len(stats))
	return nil
}

func (c *memoryCatalog) MarkDonePartitions(ctx context.Context, partitions []core.Partition) error {
	c.logger.Debug("catalog: mark done partitions", "count", len(partitions))
	return nil
}

func (c *memoryCatalog) Close() error { return nil }

// LivePartitions ignores snap and reports whatever this process has
// created and not yet dropped; a real PartitionEnumerator would instead
// walk snap's manifest list.
func (c *memoryCatalog) LivePartitions(ctx context.Context, snap *core.Snapshot) ([]core.Partition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Partition, 0, len(c.live))
	for _, p := range c.live {
		out = append(out, p)
	}
	return out, nil
}
