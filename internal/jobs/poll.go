package jobs

import (
	"context"
	"time"

	"skeetstats/internal/logging"
	"skeetstats/internal/metrics"
	"skeetstats/internal/model"
	"skeetstats/internal/store"
)

// Dispatcher drives one inbound mention through its command handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, post model.Post) error
}

// Ensurer guarantees a usable session before an authenticated call.
type Ensurer interface {
	Ensure(ctx context.Context) error
}

// RunPollOnce drains unread mentions in arrival order, strictly
// sequentially. A failed post is logged and skipped; it stays unread
// and is retried on the next tick, so delivery is at-least-once.
func RunPollOnce(ctx context.Context, db *store.DB, disp Dispatcher) error {
	start := time.Now()
	metrics.PollRuns.Inc()
	posts, err := db.UnreadPosts(ctx)
	if err != nil {
		metrics.PollErrors.Inc()
		logging.ToFile("error.log", "error selecting unread: "+err.Error())
		return err
	}
	for _, p := range posts {
		if err := disp.Dispatch(ctx, p); err != nil {
			logging.Error("dispatch_error", map[string]any{"cid": p.CID, "error": err.Error()})
			continue
		}
	}
	metrics.ObservePollDuration(start)
	return nil
}

// RunPollLoop runs RunPollOnce on a ticker until ctx is cancelled.
func RunPollLoop(ctx context.Context, db *store.DB, disp Dispatcher, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	// run immediately
	_ = RunPollOnce(ctx, db, disp)
	for {
		select {
		case <-ctx.Done():
			logging.Info("poll_loop_stop", nil)
			return ctx.Err()
		case <-t.C:
			if err := RunPollOnce(ctx, db, disp); err != nil {
				logging.Error("poll_once_error", map[string]any{"error": err.Error()})
			}
		}
	}
}

// RunPurgeOnce deletes processed mentions.
func RunPurgeOnce(ctx context.Context, db *store.DB) error {
	n, err := db.PurgeReadPosts(ctx)
	if err != nil {
		logging.ToFile("error.log", "error deleting read posts: "+err.Error())
		return err
	}
	if n > 0 {
		logging.Info("purged_read_posts", map[string]any{"count": n})
	}
	return nil
}

// RunPurgeLoop purges on a long period, decoupled from the poll
// cadence so a slow consumer is never blocked on cleanup.
func RunPurgeLoop(ctx context.Context, db *store.DB, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	_ = RunPurgeOnce(ctx, db)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := RunPurgeOnce(ctx, db); err != nil {
				logging.Error("purge_once_error", map[string]any{"error": err.Error()})
			}
		}
	}
}
