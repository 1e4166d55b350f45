// Package jobs holds background maintenance loops.
package jobs

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/rgaros/fixline/internal/store"
)

// retentionGrace keeps expired tokens around briefly so a caller who asks
// for a resend right at the deadline doesn't lose their upload record.
const retentionGrace = 24 * time.Hour

// UploadCleanupJob removes expired upload tokens and the image files saved
// for them. It runs on a configurable interval (default: 1 hour).
type UploadCleanupJob struct {
	store    *store.Store
	logger   *log.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewUploadCleanupJob creates a new cleanup job.
func NewUploadCleanupJob(s *store.Store, logger *log.Logger, interval time.Duration) *UploadCleanupJob {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	return &UploadCleanupJob{
		store:    s,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background job.
func (j *UploadCleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("UploadCleanupJob: started (interval=%v)", j.interval)
}

// Stop gracefully stops the background job.
func (j *UploadCleanupJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("UploadCleanupJob: stopped")
}

func (j *UploadCleanupJob) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.sweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stopCh:
			return
		}
	}
}

func (j *UploadCleanupJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-retentionGrace)
	paths, err := j.store.PurgeExpiredUploadTokens(ctx, cutoff)
	if err != nil {
		j.logger.Printf("UploadCleanupJob: purge failed: %v", err)
		return
	}

	removed := 0
	for _, p := range paths {
		if err := os.Remove(p); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			j.logger.Printf("UploadCleanupJob: failed to remove %s: %v", p, err)
		}
	}
	if len(paths) > 0 {
		j.logger.Printf("UploadCleanupJob: purged %d tokens, removed %d files", len(paths), removed)
	}
}
