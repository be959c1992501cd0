package vision

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// backgroundTimeout bounds one best-effort write.
const backgroundTimeout = 10 * time.Second

// backgroundWriter runs best-effort writes off the caller's path.
// Failures are logged and never reported back.
type backgroundWriter struct {
	wg sync.WaitGroup
}

func (b *backgroundWriter) Go(ctx context.Context, operation string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Error("background write failed", "operation", operation, "error", err)
		}
	}()
}

// Wait blocks until every pending write has finished.
func (b *backgroundWriter) Wait() {
	b.wg.Wait()
}
