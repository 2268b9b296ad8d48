package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/skill-training-api/pkg/jobs"
	"github.com/noah-isme/skill-training-api/pkg/storage"
)

// EvidenceCleaner removes evidence objects whose rows are gone. Deletes run after the database
// commit so a rolled back transaction never loses a file.
type EvidenceCleaner struct {
	queue  *jobs.Queue[string]
	store  storage.ObjectStore
	logger *zap.Logger
}

// NewEvidenceCleaner builds the cleaner and its worker queue. Call Start before scheduling.
func NewEvidenceCleaner(store storage.ObjectStore, cfg jobs.QueueConfig) *EvidenceCleaner {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c := &EvidenceCleaner{store: store, logger: cfg.Logger}
	c.queue = jobs.NewQueue[string]("evidence-cleanup", c.handle, cfg)
	return c
}

// Start launches the workers.
func (c *EvidenceCleaner) Start(ctx context.Context) {
	c.queue.Start(ctx)
}

// Stop waits for the workers to exit. Pending deletions are dropped.
func (c *EvidenceCleaner) Stop() {
	c.queue.Stop()
}

// Schedule queues object keys for deletion. A full queue is logged, not returned.
func (c *EvidenceCleaner) Schedule(keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := c.queue.Enqueue(key); err != nil {
			c.logger.Warn("evidence cleanup not scheduled", zap.String("key", key), zap.Error(err))
		}
	}
}

func (c *EvidenceCleaner) handle(ctx context.Context, job jobs.Job[string]) error {
	key := job.Payload
	if err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return err
	}
	c.logger.Debug("evidence object removed", zap.String("key", key))
	return nil
}
