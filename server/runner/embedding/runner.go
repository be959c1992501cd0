package embedding

import (
	"context"
	"log/slog"
	"time"
)

// maxRounds caps the batches taken in one pass so a large backlog does not starve other work.
const maxRounds = 20

// PendingEmbedder embeds reference images that have no vector yet.
type PendingEmbedder interface {
	EmbedPending(ctx context.Context, limit int) (processed, failed int, err error)
}

// Runner periodically embeds reference images that were stored without a vector.
type Runner struct {
	embedder  PendingEmbedder
	interval  time.Duration
	batchSize int
}

// NewRunner creates a reference embedding runner.
// Small batches keep memory peaks low; the long interval reduces contention with recognition traffic.
func NewRunner(embedder PendingEmbedder, interval time.Duration, batchSize int) *Runner {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 8
	}
	return &Runner{
		embedder:  embedder,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run starts the background task and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	r.processPending(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.processPending(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce processes pending references once (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) int {
	return r.processPending(ctx)
}

// processPending embeds batches until the backlog is drained, a batch makes no
// progress, or the round cap is reached. It returns the number of embedded references.
func (r *Runner) processPending(ctx context.Context) int {
	total := 0
	for round := 0; round < maxRounds; round++ {
		select {
		case <-ctx.Done():
			slog.Info("embedding processing cancelled", "processed", total)
			return total
		default:
		}

		processed, failed, err := r.embedder.EmbedPending(ctx, r.batchSize)
		if err != nil {
			slog.Error("failed to embed pending reference images", "error", err)
			return total
		}
		total += processed
		if processed+failed == 0 {
			break
		}
		slog.Info("batch processed", "processed", processed, "failed", failed)
		// References that keep failing stay pending; retry them on the next tick.
		if processed == 0 || processed+failed < r.batchSize {
			break
		}
	}
	return total
}
