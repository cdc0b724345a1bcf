package server

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siddu28/Erflog/internal/matching"
	"github.com/siddu28/Erflog/internal/profile"
	"github.com/siddu28/Erflog/internal/progress"
	"github.com/siddu28/Erflog/internal/roadmap"
	"github.com/siddu28/Erflog/internal/saved"
	"github.com/siddu28/Erflog/internal/store"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

func errorBody(msg string) gin.H {
	return gin.H{"status": "error", "error": msg}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, saved.ErrNotInSnapshot):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, saved.ErrTooFewItems):
		return http.StatusBadRequest
	case errors.Is(err, progress.ErrUnknownNode),
		errors.Is(err, progress.ErrNoRoadmap),
		errors.Is(err, profile.ErrNoVector),
		errors.Is(err, roadmap.ErrTooFewRoadmaps):
		return http.StatusUnprocessableEntity
	case errors.Is(err, matching.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorBody(msg))
}

func (s *Server) today(c *gin.Context) {
	out, err := s.deps.Runner.Run(c.Request.Context(), c.GetString(ctxUserID), false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "cached": out.Cached, "data": out.Snapshot})
}

func (s *Server) refresh(c *gin.Context) {
	out, err := s.deps.Runner.Run(c.Request.Context(), c.GetString(ctxUserID), true)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "cached": false, "data": out.Snapshot})
}

const (
	dashboardJobs     = 5
	dashboardContests = 2
	dashboardNews     = 2
)

func head(items []store.SnapshotItem, n int) []store.SnapshotItem {
	if len(items) > n {
		items = items[:n]
	}
	if items == nil {
		items = []store.SnapshotItem{}
	}
	return items
}

// dashboard is a short view of today's snapshot. It runs the pipeline when
// the user has no snapshot for today yet.
func (s *Server) dashboard(c *gin.Context) {
	out, err := s.deps.Runner.Run(c.Request.Context(), c.GetString(ctxUserID), false)
	if err != nil {
		fail(c, err)
		return
	}
	snap := out.Snapshot
	c.JSON(http.StatusOK, gin.H{"status": "success", "cached": out.Cached, "data": gin.H{
		"date":         snap.Date,
		"generated_at": snap.GeneratedAt,
		"jobs":         head(snap.Jobs, dashboardJobs),
		"contests":     head(snap.Contests, dashboardContests),
		"news":         head(snap.News, dashboardNews),
		"stats":        snap.Stats,
	}})
}

func (s *Server) cron(c *gin.Context) {
	got := c.GetHeader(HeaderCronSecret)
	if s.deps.CronSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.CronSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("invalid cron secret"))
		return
	}

	users, err := s.deps.Users.ActiveUserIDs(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, s.deps.Runner.RunAll(c.Request.Context(), users))
}

func (s *Server) latestItem(c *gin.Context) (*store.SnapshotItem, bool) {
	snap, err := s.deps.Snapshots.LatestSnapshot(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	item, found := snap.FindItem(c.Param("id"))
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody("item not found in latest snapshot"))
		return nil, false
	}
	return item, true
}

func (s *Server) itemRoadmap(c *gin.Context) {
	item, found := s.latestItem(c)
	if !found {
		return
	}
	ok(c, gin.H{
		"item_id":         item.ID,
		"tier":            item.Tier,
		"roadmap":         item.Roadmap,
		"roadmap_pending": item.RoadmapPending,
		"missing_skills":  item.MissingSkills,
	})
}

func (s *Server) itemApplication(c *gin.Context) {
	item, found := s.latestItem(c)
	if !found {
		return
	}
	if item.ApplicationText == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody("application text not available"))
		return
	}
	ok(c, gin.H{"item_id": item.ID, "application_text": item.ApplicationText})
}

type saveRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

func (s *Server) saveItem(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	rec, err := s.deps.Saved.Save(c.Request.Context(), c.GetString(ctxUserID), req.ItemID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rec)
}

func (s *Server) listSaved(c *gin.Context) {
	items, err := s.deps.Saved.List(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (s *Server) checkSaved(c *gin.Context) {
	res, err := s.deps.Saved.Check(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) removeSaved(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Saved.Remove(c.Request.Context(), c.GetString(ctxUserID), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"saved_item_id": id, "removed": true})
}

// ownedItem aborts the request unless the saved item belongs to the caller.
func (s *Server) ownedItem(c *gin.Context) (string, bool) {
	item, err := s.deps.Saved.Get(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		fail(c, err)
		return "", false
	}
	return item.ID, true
}

func (s *Server) getProgress(c *gin.Context) {
	id, owned := s.ownedItem(c)
	if !owned {
		return
	}
	view, err := s.deps.Tracker.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, view)
}

type progressRequest struct {
	NodeID    string `json:"node_id" binding:"required"`
	Completed *bool  `json:"completed" binding:"required"`
	Version   *int64 `json:"version" binding:"omitempty,gte=0"`
}

func (s *Server) setProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	id, owned := s.ownedItem(c)
	if !owned {
		return
	}
	res, err := s.deps.Tracker.Set(c.Request.Context(), id, req.NodeID, *req.Completed, req.Version)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) completeCheck(c *gin.Context) {
	id, owned := s.ownedItem(c)
	if !owned {
		return
	}
	res, err := s.deps.Tracker.CompleteCheck(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

type mergeRequest struct {
	SavedItemIDs []string `json:"saved_item_ids" binding:"required,min=2,dive,required"`
	Name         string   `json:"name" binding:"omitempty,max=120"`
}

func (s *Server) mergeRoadmaps(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	rec, err := s.deps.Plans.Merge(c.Request.Context(), c.GetString(ctxUserID), req.Name, req.SavedItemIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": rec})
}

func (s *Server) listRoadmaps(c *gin.Context) {
	out, err := s.deps.Plans.List(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (s *Server) getRoadmap(c *gin.Context) {
	rec, err := s.deps.Plans.Get(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rec)
}

func (s *Server) deleteRoadmap(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Plans.Delete(c.Request.Context(), c.GetString(ctxUserID), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"merged_roadmap_id": id, "deleted": true})
}
