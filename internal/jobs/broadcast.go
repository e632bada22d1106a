package jobs

import (
	"context"
	"fmt"
	"time"

	"skeetstats/internal/bsky"
	"skeetstats/internal/logging"
	"skeetstats/internal/metrics"
	"skeetstats/internal/model"
	"skeetstats/internal/schedule"
	"skeetstats/internal/store"
)

// PostCreator is the write slice of the API client the broadcast uses.
type PostCreator interface {
	CreatePost(ctx context.Context, rec bsky.PostRecord) (model.PostRef, error)
}

const broadcastTextFmt = "%d users have opted in to skeetstats so far! if you want to be in the next update tag me with the command !optin"

// RunBroadcastOnce publishes one unthreaded post announcing the current
// membership count, with a fixed promotional embed.
func RunBroadcastOnce(ctx context.Context, db *store.DB, sessions Ensurer, client PostCreator, siteURL string) error {
	count, err := db.CountOptedIn(ctx)
	if err != nil {
		logging.ToFile("error.log", "error counting users: "+err.Error())
		return err
	}
	if err := sessions.Ensure(ctx); err != nil {
		return err
	}
	rec := bsky.PostRecord{
		Text:  fmt.Sprintf(broadcastTextFmt, count),
		Langs: []string{"en"},
		Embed: &bsky.ExternalEmbed{
			Type: "app.bsky.embed.external",
			External: bsky.ExternalLink{
				URI:         siteURL,
				Title:       "SkeetStats for bluesky",
				Description: "track your posting stats!",
			},
		},
	}
	if _, err := client.CreatePost(ctx, rec); err != nil {
		logging.ToFile("error.log", "error posting users: "+err.Error())
		return err
	}
	metrics.Broadcasts.Inc()
	logging.Info("broadcast_posted", map[string]any{"members": count})
	return nil
}

// RunBroadcastLoop fires the broadcast once a day at hour:min UTC.
// A failed firing is logged and not retried until the next one.
func RunBroadcastLoop(ctx context.Context, db *store.DB, sessions Ensurer, client PostCreator, siteURL string, hour, min int) error {
	for {
		next := schedule.NextDaily(time.Now(), hour, min)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if err := RunBroadcastOnce(ctx, db, sessions, client, siteURL); err != nil {
				logging.Error("broadcast_error", map[string]any{"error": err.Error()})
			}
		}
	}
}
