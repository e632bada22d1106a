package store

import (
	"context"
	"errors"
	"testing"

	"skeetstats/internal/model"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUnreadPostsArrivalOrder(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	for _, cid := range []string{"c1", "c2", "c3"} {
		if err := db.InsertPost(ctx, model.Post{CID: cid, URI: "at://" + cid, Author: "a", Text: "!optin"}); err != nil {
			t.Fatal(err)
		}
	}
	posts, err := db.UnreadPosts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 3 || posts[0].CID != "c1" || posts[2].CID != "c3" {
		t.Fatalf("order mismatch: %+v", posts)
	}
}

func TestMarkReadAndPurge(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	_ = db.InsertPost(ctx, model.Post{CID: "c1", URI: "u1", Author: "a", Text: "!status"})
	_ = db.InsertPost(ctx, model.Post{CID: "c2", URI: "u2", Author: "a", Text: "!status"})
	if err := db.MarkPostRead(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	posts, err := db.UnreadPosts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].CID != "c2" {
		t.Fatalf("unread after mark: %+v", posts)
	}
	n, err := db.PurgeReadPosts(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purged %d, err %v", n, err)
	}
}

func TestInsertPostDuplicateCIDIgnored(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	p := model.Post{CID: "c1", URI: "u1", Author: "a", Text: "!optin"}
	if err := db.InsertPost(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertPost(ctx, p); err != nil {
		t.Fatal(err)
	}
	posts, _ := db.UnreadPosts(ctx)
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
}

func TestOptInIdempotent(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	ins, err := db.OptIn(ctx, "did:plc:alice")
	if err != nil || !ins {
		t.Fatalf("first opt-in: %v %v", ins, err)
	}
	ins, err = db.OptIn(ctx, "did:plc:alice")
	if err != nil {
		t.Fatal(err)
	}
	if ins {
		t.Fatal("second opt-in reported an insert")
	}
	n, _ := db.CountOptedIn(ctx)
	if n != 1 {
		t.Fatalf("expected 1 member, got %d", n)
	}
}

func TestOptOutNonMemberNoop(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	removed, err := db.OptOut(ctx, "did:plc:ghost")
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Fatal("removed a row that never existed")
	}
	_, _ = db.OptIn(ctx, "did:plc:alice")
	removed, _ = db.OptOut(ctx, "did:plc:alice")
	if !removed {
		t.Fatal("expected removal")
	}
	ok, _ := db.IsOptedIn(ctx, "did:plc:alice")
	if ok {
		t.Fatal("still a member after opt-out")
	}
}

func TestSessionUpsert(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	if _, err := db.LoadSession(ctx, "did:plc:bot"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := db.SaveSession(ctx, "did:plc:bot", `{"accessJwt":"one"}`); err != nil {
		t.Fatal(err)
	}
	// upsert must overwrite, not fail on duplicate key
	if err := db.SaveSession(ctx, "did:plc:bot", `{"accessJwt":"two"}`); err != nil {
		t.Fatal(err)
	}
	tokens, err := db.LoadSession(ctx, "did:plc:bot")
	if err != nil || tokens != `{"accessJwt":"two"}` {
		t.Fatalf("load: %q %v", tokens, err)
	}
}

func TestStatsHistoryAndMonthly(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	rowsIn := []model.StatRow{
		{DID: "d", Date: "2024-02-01 23:00:00", FollowersCount: 10, FollowsCount: 5, PostsCount: 100},
		{DID: "d", Date: "2024-02-15 23:00:00", FollowersCount: 14, FollowsCount: 6, PostsCount: 120},
		{DID: "d", Date: "2024-03-01 23:00:00", FollowersCount: 20, FollowsCount: 6, PostsCount: 130},
	}
	for _, r := range rowsIn {
		if err := db.InsertStat(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	hist, err := db.StatHistory(ctx, "d", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 3 || hist[0].Date != "2024-03-01 23:00:00" {
		t.Fatalf("history: %+v", hist)
	}
	chart, err := db.ChartWindow(ctx, "d", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(chart) != 2 || chart[0].Date != "2024-02-15 23:00:00" {
		t.Fatalf("chart window: %+v", chart)
	}
	monthly, err := db.MonthlyDeltas(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if len(monthly) != 2 {
		t.Fatalf("months: %+v", monthly)
	}
	if monthly[0].Month != "2024-03" || monthly[1].FollowersDelta != 4 {
		t.Fatalf("deltas: %+v", monthly)
	}
}

func TestBestDaysPicksLargestIncreasePerMetric(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	rowsIn := []model.StatRow{
		{DID: "d", Date: "2024-03-01 23:00:00", FollowersCount: 10, FollowsCount: 5, PostsCount: 100},
		{DID: "d", Date: "2024-03-02 23:00:00", FollowersCount: 18, FollowsCount: 6, PostsCount: 101},
		{DID: "d", Date: "2024-03-03 23:00:00", FollowersCount: 20, FollowsCount: 6, PostsCount: 140},
	}
	for _, r := range rowsIn {
		if err := db.InsertStat(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	best, err := db.BestDays(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if best.FollowersCountDate == nil || *best.FollowersCountDate != "2024-03-02 23:00:00" || best.FollowersCountIncrease != 8 {
		t.Fatalf("followers best day: %+v", best)
	}
	if best.PostsCountDate == nil || *best.PostsCountDate != "2024-03-03 23:00:00" || best.PostsCountIncrease != 39 {
		t.Fatalf("posts best day: %+v", best)
	}
	if best.FollowsCountIncrease != 1 {
		t.Fatalf("follows best day: %+v", best)
	}
}

func TestBestDaysEmptyHistory(t *testing.T) {
	db := openTest(t)
	best, err := db.BestDays(context.Background(), "did:plc:ghost")
	if err != nil {
		t.Fatal(err)
	}
	if best.FollowersCountDate != nil || best.PostsCountIncrease != 0 {
		t.Fatalf("expected empty best days: %+v", best)
	}
}
