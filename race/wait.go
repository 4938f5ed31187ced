package race

import (
	"context"
	"time"
)

// Sleep waits for the given duration or until the context is
// cancelled, whichever comes first. Returns the context error when the
// wait was interrupted. Together with the checking-state poll these
// calls are the only points where cancellation is observed.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
