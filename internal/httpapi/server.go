package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"skeetstats/internal/logging"
	"skeetstats/internal/model"
	"skeetstats/internal/store"
)

// Ensurer guarantees a usable session before an authenticated call.
type Ensurer interface {
	Ensure(ctx context.Context) error
}

// Reader is the read slice of the API client the endpoints proxy.
type Reader interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	GetProfile(ctx context.Context, actor string) (model.Profile, error)
	GetSuggestedFollows(ctx context.Context, actor string) ([]model.Profile, error)
	SearchActorsTypeahead(ctx context.Context, term string, limit int) ([]model.Profile, error)
	GetFollowers(ctx context.Context, actor, cursor string) ([]model.Profile, string, error)
}

// Server exposes the read-only statistics API.
type Server struct {
	db       *store.DB
	sessions Ensurer
	client   Reader
	siteURL  string
}

func NewServer(db *store.DB, sessions Ensurer, client Reader, siteURL string) *Server {
	return &Server{db: db, sessions: sessions, client: client, siteURL: siteURL}
}

// Router builds the gin engine with every read endpoint mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/api/stats/:userdid", s.handleStats)
	r.GET("/api/chart/:userdid", s.handleChart)
	r.GET("/api/monthly/:userdid", s.handleMonthly)
	r.GET("/api/mostincreased/:userdid", s.handleMostIncreased)
	r.POST("/api/resolve/:handle", s.handleResolve)
	r.GET("/api/profile/:handle", s.handleProfile)
	r.GET("/api/suggested/:handle", s.handleSuggested)
	r.GET("/api/search/:term", s.handleSearch)
	r.GET("/api/followers/:handle", s.handleFollowers)
	r.GET("/api/followers/:handle/:cursor", s.handleFollowers)
	// catch-all redirect; no routes may come after this
	r.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusFound, s.siteURL)
	})
	return r
}

// Run serves the API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func internalError(c *gin.Context, concern, msg string, err error) {
	logging.ErrorTo(concern, msg, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
}
