package command

import (
	"context"
	"fmt"

	"skeetstats/internal/cmdlog"
	"skeetstats/internal/model"
	"skeetstats/internal/store"
)

// Reply suffixes appended to the author's (truncated) display name.
const (
	suffixOptedIn        = ", you've opted in!"
	suffixAlreadyOptedIn = ", you're already opted in"
	suffixOptedOut       = ", you've been opted out!"
	suffixNotOptedIn     = ", you're not currently opted in"
	suffixStatusIn       = ", you're opted in!"
	suffixStatusOut      = ", you're not currently opted in. tag me again with the command !optin to be in the next update"
	suffixUnknown        = ", sorry i'm not familiar with that command. if it is a valid command please tag the account that runs this bot"
)

// Ensurer guarantees a usable session before an authenticated call.
type Ensurer interface {
	Ensure(ctx context.Context) error
}

// ProfileFetcher is the read slice of the API client handlers need.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, actor string) (model.Profile, error)
}

// Replier publishes the threaded response and marks the trigger read.
type Replier interface {
	Reply(ctx context.Context, authorDID, cid, uri, name, handle, suffix string) error
}

// Dispatcher routes one inbound mention to exactly one handler.
type Dispatcher struct {
	sessions  Ensurer
	client    ProfileFetcher
	db        *store.DB
	responder Replier
}

func NewDispatcher(sessions Ensurer, client ProfileFetcher, db *store.DB, responder Replier) *Dispatcher {
	return &Dispatcher{sessions: sessions, client: client, db: db, responder: responder}
}

// Dispatch classifies the post text and runs the matching handler.
// Failures are contained here: the caller gets an error value for
// observation, the post stays unread, and the batch keeps going.
func (d *Dispatcher) Dispatch(ctx context.Context, post model.Post) error {
	cmd := Parse(post.Text)
	return cmdlog.Run(cmd.String(), func() error {
		return d.handle(ctx, cmd, post)
	})
}

func (d *Dispatcher) handle(ctx context.Context, cmd Command, post model.Post) error {
	profile, err := d.fetchProfile(ctx, post.Author)
	if err != nil {
		return fmt.Errorf("fetch profile for %s: %w", post.Author, err)
	}
	name := profile.Name()
	switch cmd {
	case OptIn:
		inserted, err := d.db.OptIn(ctx, post.Author)
		if err != nil {
			return fmt.Errorf("opt in %s: %w", post.Author, err)
		}
		suffix := suffixOptedIn
		if !inserted {
			suffix = suffixAlreadyOptedIn
		}
		return d.responder.Reply(ctx, post.Author, post.CID, post.URI, name, profile.Handle, suffix)
	case OptOut:
		removed, err := d.db.OptOut(ctx, post.Author)
		if err != nil {
			return fmt.Errorf("opt out %s: %w", post.Author, err)
		}
		suffix := suffixOptedOut
		if !removed {
			suffix = suffixNotOptedIn
		}
		return d.responder.Reply(ctx, post.Author, post.CID, post.URI, name, profile.Handle, suffix)
	case Status:
		member, err := d.db.IsOptedIn(ctx, post.Author)
		if err != nil {
			return fmt.Errorf("status %s: %w", post.Author, err)
		}
		suffix := suffixStatusIn
		if !member {
			suffix = suffixStatusOut
		}
		return d.responder.Reply(ctx, post.Author, post.CID, post.URI, name, profile.Handle, suffix)
	default:
		return d.responder.Reply(ctx, post.Author, post.CID, post.URI, name, profile.Handle, suffixUnknown)
	}
}

// fetchProfile resolves the author under an ensured session.
func (d *Dispatcher) fetchProfile(ctx context.Context, author string) (model.Profile, error) {
	if err := d.sessions.Ensure(ctx); err != nil {
		return model.Profile{}, err
	}
	return d.client.GetProfile(ctx, author)
}
