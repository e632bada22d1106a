package jobs

import (
	"context"
	"time"

	"skeetstats/internal/logging"
	"skeetstats/internal/metrics"
	"skeetstats/internal/model"
	"skeetstats/internal/schedule"
	"skeetstats/internal/store"
)

// ProfileFetcher is the read slice of the API client the snapshot uses.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, actor string) (model.Profile, error)
}

// RunSnapshotOnce records today's follower/follows/posts counts for
// every opted-in account. Per-account failures go to stats.log and do
// not stop the fan-out.
func RunSnapshotOnce(ctx context.Context, db *store.DB, sessions Ensurer, client ProfileFetcher) error {
	if err := sessions.Ensure(ctx); err != nil {
		return err
	}
	dids, err := db.ListOptedIn(ctx)
	if err != nil {
		logging.ToFile("error.log", "error in stats snapshot: "+err.Error())
		return err
	}
	date := time.Now().UTC().Format("2006-01-02 15:04:05")
	for _, did := range dids {
		gp, err := client.GetProfile(ctx, did)
		if err != nil {
			logging.ToFile("stats.log", "error processing "+did+": "+err.Error())
			continue
		}
		row := model.StatRow{
			DID:            gp.DID,
			Date:           date,
			FollowersCount: gp.FollowersCount,
			FollowsCount:   gp.FollowsCount,
			PostsCount:     gp.PostsCount,
		}
		if err := db.InsertStat(ctx, row); err != nil {
			logging.ToFile("stats.log", "error processing "+did+": "+err.Error())
			continue
		}
		metrics.SnapshotRows.Inc()
	}
	logging.Info("snapshot_done", map[string]any{"accounts": len(dids)})
	return nil
}

// RunSnapshotLoop fires the snapshot once a day at hour:min UTC.
func RunSnapshotLoop(ctx context.Context, db *store.DB, sessions Ensurer, client ProfileFetcher, hour, min int) error {
	for {
		next := schedule.NextDaily(time.Now(), hour, min)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if err := RunSnapshotOnce(ctx, db, sessions, client); err != nil {
				logging.Error("snapshot_error", map[string]any{"error": err.Error()})
			}
		}
	}
}
