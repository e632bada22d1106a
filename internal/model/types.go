package model

// Post is one inbound mention pulled from the post table.
// CID identifies the content immutably; URI locates it for threading.
type Post struct {
	CID    string
	URI    string
	Author string
	Text   string
	IsRead bool
}

// Profile is a subset of Bluesky actor fields used by the bot.
type Profile struct {
	DID            string
	Handle         string
	DisplayName    string
	FollowersCount int
	FollowsCount   int
	PostsCount     int
}

// Name returns the display name, falling back to the handle when the
// actor never set one.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Handle
}

// Session is the token bundle persisted between restarts. Validity is
// unknown until exercised; the first authenticated call after a resume
// may still fail on an expired token.
type Session struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// StatRow is one daily follower/follows/posts snapshot.
type StatRow struct {
	DID            string
	Date           string
	FollowersCount int
	FollowsCount   int
	PostsCount     int
}

// PostRef points at a published record, as returned by createRecord.
type PostRef struct {
	URI string
	CID string
}
