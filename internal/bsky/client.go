package bsky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"skeetstats/internal/metrics"
	"skeetstats/internal/model"
)

// followersSanityLimit caps follower pagination. Not currently
// enforced; the public endpoint behaves and page size stays small.
const followersSanityLimit = 5000

const followersPageSize = 15

// Client defines the operations the bot consumes from the AT Protocol
// service.
type Client interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	CreateSession(ctx context.Context, identifier, password string) (model.Session, error)
	SetSession(sess model.Session)
	Session() model.Session
	GetProfile(ctx context.Context, actor string) (model.Profile, error)
	CreatePost(ctx context.Context, rec PostRecord) (model.PostRef, error)
	LikePost(ctx context.Context, uri, cid string) error
	SearchActorsTypeahead(ctx context.Context, term string, limit int) ([]model.Profile, error)
	GetSuggestedFollows(ctx context.Context, actor string) ([]model.Profile, error)
	GetFollowers(ctx context.Context, actor, cursor string) ([]model.Profile, string, error)
}

// PostRecord is an app.bsky.feed.post record. Reply and Embed are
// optional; a broadcast sets neither Reply nor thread refs.
type PostRecord struct {
	Type      string         `json:"$type"`
	Text      string         `json:"text"`
	Langs     []string       `json:"langs,omitempty"`
	Reply     *ReplyRef      `json:"reply,omitempty"`
	Embed     *ExternalEmbed `json:"embed,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

type ReplyRef struct {
	Parent StrongRef `json:"parent"`
	Root   StrongRef `json:"root"`
}

type StrongRef struct {
	CID string `json:"cid"`
	URI string `json:"uri"`
}

type ExternalEmbed struct {
	Type     string       `json:"$type"`
	External ExternalLink `json:"external"`
}

type ExternalLink struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// HTTPClient talks XRPC to a PDS with a rate limiter and bounded
// retries in front of every request.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration

	mu   sync.RWMutex
	sess model.Session
}

func NewHTTPClient(service string) *HTTPClient {
	if service == "" {
		service = "https://bsky.social"
	}
	return &HTTPClient{
		baseURL:     service,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     newDefaultLimiter(),
		maxAttempts: getEnvInt("BSKY_API_MAX_ATTEMPTS", 5),
		baseBackoff: time.Duration(getEnvInt("BSKY_API_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

// SetSession installs a token bundle locally. This is session
// resumption: no network round trip happens here, so an expired token
// is only discovered by the next authenticated call failing.
func (c *HTTPClient) SetSession(sess model.Session) {
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
}

func (c *HTTPClient) Session() model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess
}

func (c *HTTPClient) auth(req *http.Request) {
	c.mu.RLock()
	jwt := c.sess.AccessJwt
	c.mu.RUnlock()
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *HTTPClient) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if handle == "" {
		return "", errors.New("empty handle")
	}
	u := fmt.Sprintf("%s/xrpc/com.atproto.identity.resolveHandle?handle=%s", c.baseURL, url.QueryEscape(handle))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	var raw struct {
		DID string `json:"did"`
	}
	if err := c.doJSON(ctx, req, &raw); err != nil {
		return "", err
	}
	return raw.DID, nil
}

func (c *HTTPClient) CreateSession(ctx context.Context, identifier, password string) (model.Session, error) {
	var out model.Session
	body, _ := json.Marshal(map[string]string{"identifier": identifier, "password": password})
	u := c.baseURL + "/xrpc/com.atproto.server.createSession"
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if err := c.doJSON(ctx, req, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *HTTPClient) GetProfile(ctx context.Context, actor string) (model.Profile, error) {
	var out model.Profile
	if actor == "" {
		return out, errors.New("empty actor")
	}
	u := fmt.Sprintf("%s/xrpc/app.bsky.actor.getProfile?actor=%s", c.baseURL, url.QueryEscape(actor))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	var raw profileView
	if err := c.doJSON(ctx, req, &raw); err != nil {
		return out, err
	}
	return raw.toModel(), nil
}

func (c *HTTPClient) CreatePost(ctx context.Context, rec PostRecord) (model.PostRef, error) {
	var out model.PostRef
	rec.Type = "app.bsky.feed.post"
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	body, _ := json.Marshal(map[string]any{
		"repo":       c.Session().DID,
		"collection": "app.bsky.feed.post",
		"record":     rec,
	})
	u := c.baseURL + "/xrpc/com.atproto.repo.createRecord"
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)
	var raw struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := c.doJSON(ctx, req, &raw); err != nil {
		return out, err
	}
	return model.PostRef{URI: raw.URI, CID: raw.CID}, nil
}

func (c *HTTPClient) LikePost(ctx context.Context, uri, cid string) error {
	body, _ := json.Marshal(map[string]any{
		"repo":       c.Session().DID,
		"collection": "app.bsky.feed.like",
		"record": map[string]any{
			"$type":     "app.bsky.feed.like",
			"subject":   map[string]string{"uri": uri, "cid": cid},
			"createdAt": time.Now().UTC().Format(time.RFC3339),
		},
	})
	u := c.baseURL + "/xrpc/com.atproto.repo.createRecord"
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)
	var raw struct {
		URI string `json:"uri"`
	}
	return c.doJSON(ctx, req, &raw)
}

func (c *HTTPClient) SearchActorsTypeahead(ctx context.Context, term string, limit int) ([]model.Profile, error) {
	u := fmt.Sprintf("%s/xrpc/app.bsky.actor.searchActorsTypeahead?term=%s&limit=%d",
		c.baseURL, url.QueryEscape(term), clamp(limit, 1, 100))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	var raw struct {
		Actors []profileView `json:"actors"`
	}
	if err := c.doJSON(ctx, req, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Profile, 0, len(raw.Actors))
	for _, a := range raw.Actors {
		out = append(out, a.toModel())
	}
	return out, nil
}

func (c *HTTPClient) GetSuggestedFollows(ctx context.Context, actor string) ([]model.Profile, error) {
	u := fmt.Sprintf("%s/xrpc/app.bsky.graph.getSuggestedFollowsByActor?actor=%s", c.baseURL, url.QueryEscape(actor))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	var raw struct {
		Suggestions []profileView `json:"suggestions"`
	}
	if err := c.doJSON(ctx, req, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Profile, 0, len(raw.Suggestions))
	for _, s := range raw.Suggestions {
		out = append(out, s.toModel())
	}
	return out, nil
}

// GetFollowers returns one page of followers plus the cursor for the
// next page.
func (c *HTTPClient) GetFollowers(ctx context.Context, actor, cursor string) ([]model.Profile, string, error) {
	u := fmt.Sprintf("%s/xrpc/app.bsky.graph.getFollowers?actor=%s&limit=%d&cursor=%s",
		c.baseURL, url.QueryEscape(actor), followersPageSize, url.QueryEscape(cursor))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	var raw struct {
		Followers []profileView `json:"followers"`
		Cursor    string        `json:"cursor"`
	}
	if err := c.doJSON(ctx, req, &raw); err != nil {
		return nil, "", err
	}
	out := make([]model.Profile, 0, len(raw.Followers))
	for _, f := range raw.Followers {
		out = append(out, f.toModel())
	}
	return out, raw.Cursor, nil
}

// profileView mirrors the wire shape shared by getProfile, typeahead,
// and graph endpoints.
type profileView struct {
	DID            string `json:"did"`
	Handle         string `json:"handle"`
	DisplayName    string `json:"displayName"`
	FollowersCount int    `json:"followersCount"`
	FollowsCount   int    `json:"followsCount"`
	PostsCount     int    `json:"postsCount"`
}

func (p profileView) toModel() model.Profile {
	return model.Profile{
		DID:            p.DID,
		Handle:         p.Handle,
		DisplayName:    p.DisplayName,
		FollowersCount: p.FollowersCount,
		FollowsCount:   p.FollowsCount,
		PostsCount:     p.PostsCount,
	}
}

func (c *HTTPClient) doJSON(ctx context.Context, req *http.Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("xrpc status %d for %s", resp.StatusCode, req.URL.Path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			if rb, err := req.GetBody(); err == nil {
				r.Body = rb
			}
		}
		resp, err := c.httpClient.Do(r)
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				metrics.IncAPIRetry(req.URL.Path)
				ra := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()
				wait := backoff
				if ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						wait = time.Duration(secs) * time.Second
					} else if t, err := http.ParseTime(ra); err == nil {
						if d := time.Until(t); d > 0 {
							wait = d
						}
					}
				}
				// jitter +/-20%
				jitter := time.Duration(float64(wait) * 0.2)
				if jitter > 0 {
					wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %v", c.maxAttempts, lastErr)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
