// Package loop implements the fixed-rate poll driver shared by the
// scheduler and cleaner background tasks: tick at a fixed interval,
// tolerate consecutive tick failures up to a cap, and fail fatally on
// the cap'th consecutive failure.
package loop

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MaxConsecutiveErrors is the fixed cap on tolerated consecutive tick
// failures before the loop terminates with an error.
const MaxConsecutiveErrors = 5

// Run ticks every interval, invoking tick each time, until ctx is
// canceled (returns nil) or tick fails MaxConsecutiveErrors times in a
// row (returns a non-nil error). name is used only for logging.
func Run(ctx context.Context, name string, interval time.Duration, logger *zap.Logger, tick func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var consecutiveErrors int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := tick(ctx); err != nil {
				consecutiveErrors++
				logger.Error("tick failed",
					zap.String("loop", name),
					zap.Int("consecutive_errors", consecutiveErrors),
					zap.Error(err))
				if consecutiveErrors >= MaxConsecutiveErrors {
					return fmt.Errorf("%s: %d consecutive tick failures: %w", name, consecutiveErrors, err)
				}
				continue
			}
			consecutiveErrors = 0
		}
	}
}
