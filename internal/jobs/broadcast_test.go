package jobs

import (
	"context"
	"errors"
	"testing"

	"skeetstats/internal/bsky"
	"skeetstats/internal/model"
)

type okEnsurer struct{ calls int }

func (e *okEnsurer) Ensure(ctx context.Context) error { e.calls++; return nil }

type fakeCreator struct {
	posts []bsky.PostRecord
	err   error
}

func (f *fakeCreator) CreatePost(ctx context.Context, rec bsky.PostRecord) (model.PostRef, error) {
	if f.err != nil {
		return model.PostRef{}, f.err
	}
	f.posts = append(f.posts, rec)
	return model.PostRef{URI: "at://bot/post/1", CID: "bc"}, nil
}

func TestBroadcastAnnouncesCount(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	_, _ = db.OptIn(ctx, "did:plc:a")
	_, _ = db.OptIn(ctx, "did:plc:b")
	ens := &okEnsurer{}
	fc := &fakeCreator{}
	if err := RunBroadcastOnce(ctx, db, ens, fc, "https://skeetstats.xyz"); err != nil {
		t.Fatal(err)
	}
	if ens.calls != 1 {
		t.Fatalf("ensure calls: %d", ens.calls)
	}
	if len(fc.posts) != 1 {
		t.Fatalf("posts: %d", len(fc.posts))
	}
	rec := fc.posts[0]
	want := "2 users have opted in to skeetstats so far! if you want to be in the next update tag me with the command !optin"
	if rec.Text != want {
		t.Fatalf("text: %q", rec.Text)
	}
	if rec.Reply != nil {
		t.Fatal("broadcast must be unthreaded")
	}
	if rec.Embed == nil || rec.Embed.External.URI != "https://skeetstats.xyz" {
		t.Fatalf("embed: %+v", rec.Embed)
	}
}

func TestBroadcastFailureIsContained(t *testing.T) {
	db := openTest(t)
	fc := &fakeCreator{err: errors.New("api down")}
	if err := RunBroadcastOnce(context.Background(), db, &okEnsurer{}, fc, "https://skeetstats.xyz"); err == nil {
		t.Fatal("expected error")
	}
}
