package stage

import (
	"context"
	"time"

	"vodstitch/internal/queue"
)

// JobReader is the subset of the queue store cancellation polling needs.
type JobReader interface {
	GetByID(ctx context.Context, id int64) (*queue.Job, error)
}

const cancelPollInterval = 2 * time.Second

// WatchCancel derives a context that is cancelled as soon as the job's
// cancel flag is set in the store. External tool invocations run under the
// returned context so a user cancel terminates the process. The returned
// check function reports whether cancellation was observed; stop must be
// called when the stage finishes.
func WatchCancel(ctx context.Context, store JobReader, jobID int64) (runCtx context.Context, cancelled func() bool, stop func()) {
	watched, cancel := context.WithCancel(ctx)
	flagged := make(chan struct{})

	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-watched.Done():
				return
			case <-ticker.C:
				job, err := store.GetByID(ctx, jobID)
				if err != nil {
					continue
				}
				// A deleted row means the job is gone; stop the stage
				// the same way an explicit cancel would.
				if job == nil || job.CancelRequested {
					close(flagged)
					cancel()
					return
				}
			}
		}
	}()

	cancelled = func() bool {
		select {
		case <-flagged:
			return true
		default:
			return false
		}
	}
	return watched, cancelled, cancel
}
