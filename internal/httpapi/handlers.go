package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"skeetstats/internal/util"
)

const (
	historyLimit   = 7
	chartLimit     = 30
	searchLimit    = 10
	suggestedLimit = 10
)

// statRowView renders each count as "N (±d)" against the previous day.
type statRowView struct {
	Date           string `json:"date"`
	FollowersCount string `json:"followersCount"`
	FollowsCount   string `json:"followsCount"`
	PostsCount     string `json:"postsCount"`
}

func (s *Server) handleStats(c *gin.Context) {
	did := util.SanitizeIdentifier(c.Param("userdid"))
	// one extra row so the oldest displayed row still shows its true
	// delta instead of a padded zero
	rows, err := s.db.StatHistory(c.Request.Context(), did, historyLimit+1)
	if err != nil {
		internalError(c, "error.log", "Error fetching stats", err)
		return
	}
	// rows are newest first; each delta compares against the next older row
	out := make([]statRowView, 0, len(rows))
	for i, r := range rows {
		if i == historyLimit {
			break
		}
		var df, dw, dp int
		if i+1 < len(rows) {
			prev := rows[i+1]
			df = r.FollowersCount - prev.FollowersCount
			dw = r.FollowsCount - prev.FollowsCount
			dp = r.PostsCount - prev.PostsCount
		}
		out = append(out, statRowView{
			Date:           r.Date,
			FollowersCount: fmt.Sprintf("%d (%d)", r.FollowersCount, df),
			FollowsCount:   fmt.Sprintf("%d (%d)", r.FollowsCount, dw),
			PostsCount:     fmt.Sprintf("%d (%d)", r.PostsCount, dp),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleChart(c *gin.Context) {
	did := util.SanitizeIdentifier(c.Param("userdid"))
	rows, err := s.db.ChartWindow(c.Request.Context(), did, chartLimit)
	if err != nil {
		internalError(c, "error.log", "Error fetching chart", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleMonthly(c *gin.Context) {
	did := util.SanitizeIdentifier(c.Param("userdid"))
	deltas, err := s.db.MonthlyDeltas(c.Request.Context(), did)
	if err != nil {
		internalError(c, "error.log", "Error fetching monthly deltas", err)
		return
	}
	c.JSON(http.StatusOK, deltas)
}

func (s *Server) handleMostIncreased(c *gin.Context) {
	did := util.SanitizeIdentifier(c.Param("userdid"))
	best, err := s.db.BestDays(c.Request.Context(), did)
	if err != nil {
		internalError(c, "error.log", "Error fetching best days", err)
		return
	}
	c.JSON(http.StatusOK, best)
}

func (s *Server) handleResolve(c *gin.Context) {
	handle := util.SanitizeIdentifier(c.Param("handle"))
	did, err := s.client.ResolveHandle(c.Request.Context(), handle)
	if err != nil {
		internalError(c, "error.log", "Error resolving handle", err)
		return
	}
	c.JSON(http.StatusOK, did)
}

func (s *Server) handleProfile(c *gin.Context) {
	handle := util.SanitizeIdentifier(c.Param("handle"))
	ctx := c.Request.Context()
	if err := s.sessions.Ensure(ctx); err != nil {
		internalError(c, "error.log", "Error fetching profile", err)
		return
	}
	p, err := s.client.GetProfile(ctx, handle)
	if err != nil {
		internalError(c, "error.log", "Error fetching profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleSuggested(c *gin.Context) {
	handle := util.SanitizeIdentifier(c.Param("handle"))
	ctx := c.Request.Context()
	if err := s.sessions.Ensure(ctx); err != nil {
		internalError(c, "error.log", "Error fetching suggestions", err)
		return
	}
	suggested, err := s.client.GetSuggestedFollows(ctx, handle)
	if err != nil {
		internalError(c, "error.log", "Error fetching suggestions", err)
		return
	}
	if len(suggested) > suggestedLimit {
		suggested = suggested[:suggestedLimit]
	}
	c.JSON(http.StatusOK, suggested)
}

func (s *Server) handleSearch(c *gin.Context) {
	term := util.SanitizeIdentifier(c.Param("term"))
	ctx := c.Request.Context()
	if err := s.sessions.Ensure(ctx); err != nil {
		internalError(c, "error.log", "Error searching actors", err)
		return
	}
	actors, err := s.client.SearchActorsTypeahead(ctx, term, searchLimit)
	if err != nil {
		internalError(c, "error.log", "Error searching actors", err)
		return
	}
	c.JSON(http.StatusOK, actors)
}

func (s *Server) handleFollowers(c *gin.Context) {
	handle := util.SanitizeIdentifier(c.Param("handle"))
	cursor := c.Param("cursor")
	followers, next, err := s.client.GetFollowers(c.Request.Context(), handle, cursor)
	if err != nil {
		internalError(c, "error.log", "Error fetching followers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followers": followers, "cursor": next})
}
