package respond

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"skeetstats/internal/bsky"
	"skeetstats/internal/logging"
	"skeetstats/internal/metrics"
	"skeetstats/internal/model"
	"skeetstats/internal/store"
	"skeetstats/internal/util"
)

const (
	fallbackTitle       = "SkeetStats"
	fallbackDescription = "track your posting stats!"
)

// Ensurer guarantees a usable session before an authenticated call.
type Ensurer interface {
	Ensure(ctx context.Context) error
}

// Poster is the write slice of the API client the composer uses.
type Poster interface {
	CreatePost(ctx context.Context, rec bsky.PostRecord) (model.PostRef, error)
	LikePost(ctx context.Context, uri, cid string) error
}

// Responder publishes threaded replies to command triggers and marks
// them handled.
type Responder struct {
	sessions Ensurer
	client   Poster
	db       *store.DB
	siteURL  string
	web      *http.Client
}

func New(sessions Ensurer, client Poster, db *store.DB, siteURL string) *Responder {
	return &Responder{
		sessions: sessions,
		client:   client,
		db:       db,
		siteURL:  siteURL,
		web:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Reply publishes one threaded response to the triggering post, likes
// it, and flips its read flag. The flip happens last: a crash between
// publish and flip leaves the post unread so the next tick retries it,
// at the accepted cost of a possible duplicate reply.
func (r *Responder) Reply(ctx context.Context, authorDID, cid, uri, name, handle, suffix string) error {
	if err := r.sessions.Ensure(ctx); err != nil {
		return err
	}
	title, description := FetchMeta(ctx, r.web, r.siteURL)

	urlHandle := handle
	if urlHandle == "" {
		urlHandle = authorDID
	}
	embedTitle := fallbackTitle
	if title != nil {
		embedTitle = *title
	}
	embedTitle = embedTitle + " - " + util.Truncate(name, 30)
	embedDescription := fallbackDescription
	if description != nil {
		embedDescription = *description
	}

	rec := bsky.PostRecord{
		Text:  util.Truncate(name, 200) + suffix,
		Langs: []string{"en"},
		Reply: &bsky.ReplyRef{
			Parent: bsky.StrongRef{CID: cid, URI: uri},
			Root:   bsky.StrongRef{CID: cid, URI: uri},
		},
		Embed: &bsky.ExternalEmbed{
			Type: "app.bsky.embed.external",
			External: bsky.ExternalLink{
				URI:         r.siteURL + "/user/" + urlHandle,
				Title:       embedTitle,
				Description: embedDescription,
			},
		},
	}
	if _, err := r.client.CreatePost(ctx, rec); err != nil {
		logging.ToFile("respond_error.log", "error publishing reply: "+err.Error())
		return fmt.Errorf("publish reply: %w", err)
	}
	metrics.RepliesPosted.Inc()
	if err := r.client.LikePost(ctx, uri, cid); err != nil {
		logging.ToFile("respond_error.log", "error liking post: "+err.Error())
		return fmt.Errorf("like post: %w", err)
	}
	metrics.LikesPosted.Inc()
	if err := r.db.MarkPostRead(ctx, cid); err != nil {
		logging.ToFile("error.log", "error updating read status: "+err.Error())
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
