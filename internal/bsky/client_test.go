package bsky

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skeetstats/internal/model"
)

// helper to create client pointed at a test server
func newTestClient(ts *httptest.Server) *HTTPClient {
	c := NewHTTPClient(ts.URL)
	c.httpClient = ts.Client()
	c.maxAttempts = 3
	c.baseBackoff = 10 * time.Millisecond
	return c
}

func TestDoWithRetryHandles429(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"did":"did:plc:abc"}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	did, err := c.ResolveHandle(context.Background(), "alice.bsky.social")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if did != "did:plc:abc" {
		t.Fatalf("did: %q", did)
	}
	if attempts < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestCreateSessionAndAuthHeader(t *testing.T) {
	var sawAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["identifier"] != "bot" || body["password"] != "pw" {
				t.Errorf("credentials not forwarded: %v", body)
			}
			_ = json.NewEncoder(w).Encode(model.Session{
				DID: "did:plc:bot", Handle: "bot.bsky.social",
				AccessJwt: "access", RefreshJwt: "refresh",
			})
		case "/xrpc/app.bsky.actor.getProfile":
			sawAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"did": "did:plc:alice", "handle": "alice.bsky.social",
				"displayName": "Alice", "followersCount": 3,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := newTestClient(ts)
	sess, err := c.CreateSession(context.Background(), "bot", "pw")
	if err != nil {
		t.Fatal(err)
	}
	c.SetSession(sess)
	p, err := c.GetProfile(context.Background(), "alice.bsky.social")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "Alice" {
		t.Fatalf("name: %q", p.Name())
	}
	if sawAuth != "Bearer access" {
		t.Fatalf("auth header: %q", sawAuth)
	}
}

func TestCreatePostRetriesResendBody(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		var body struct {
			Collection string     `json:"collection"`
			Record     PostRecord `json:"record"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("attempt %d: bad body: %v", attempts, err)
		}
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if body.Record.Text != "hello" || body.Collection != "app.bsky.feed.post" {
			t.Errorf("record not resent intact: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"uri": "at://x/1", "cid": "c1"})
	}))
	defer ts.Close()

	c := newTestClient(ts)
	ref, err := c.CreatePost(context.Background(), PostRecord{Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if ref.CID != "c1" {
		t.Fatalf("ref: %+v", ref)
	}
	if attempts != 2 {
		t.Fatalf("attempts: %d", attempts)
	}
}

func TestGetFollowersPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "15" {
			t.Errorf("page size: %s", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"followers": []map[string]any{{"did": "d1", "handle": "h1"}},
			"cursor":    "next",
		})
	}))
	defer ts.Close()

	c := newTestClient(ts)
	followers, cursor, err := c.GetFollowers(context.Background(), "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(followers) != 1 || cursor != "next" {
		t.Fatalf("page: %v cursor %q", followers, cursor)
	}
}
