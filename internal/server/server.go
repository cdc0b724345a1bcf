// Package server exposes the strategist over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/progress"
	"github.com/siddu28/Erflog/internal/saved"
	"github.com/siddu28/Erflog/internal/snapshot"
	"github.com/siddu28/Erflog/internal/store"
)

const (
	// HeaderUserID carries the authenticated user id set by the gateway.
	HeaderUserID = "X-User-ID"
	// HeaderCronSecret authenticates the scheduler.
	HeaderCronSecret = "X-Cron-Secret"

	shutdownTimeout = 10 * time.Second
)

type Runner interface {
	Run(ctx context.Context, userID string, force bool) (*snapshot.Outcome, error)
	RunAll(ctx context.Context, userIDs []string) *snapshot.Summary
}

type Snapshots interface {
	LatestSnapshot(ctx context.Context, userID string) (*store.Snapshot, error)
}

type UserLister interface {
	ActiveUserIDs(ctx context.Context) ([]string, error)
}

type SavedItems interface {
	Save(ctx context.Context, userID, itemID string) (*store.SavedItem, error)
	List(ctx context.Context, userID string) ([]store.SavedItem, error)
	Get(ctx context.Context, userID, id string) (*store.SavedItem, error)
	Check(ctx context.Context, userID, itemID string) (*saved.Check, error)
	Remove(ctx context.Context, userID, id string) error
}

type Plans interface {
	Merge(ctx context.Context, userID, name string, savedItemIDs []string) (*store.MergedRoadmap, error)
	List(ctx context.Context, userID string) ([]store.MergedRoadmap, error)
	Get(ctx context.Context, userID, id string) (*store.MergedRoadmap, error)
	Delete(ctx context.Context, userID, id string) error
}

type Tracker interface {
	Get(ctx context.Context, savedItemID string) (*progress.View, error)
	Set(ctx context.Context, savedItemID, nodeID string, completed bool, expected *int64) (*progress.SetResult, error)
	CompleteCheck(ctx context.Context, savedItemID string) (*progress.Completion, error)
}

type Deps struct {
	Runner     Runner
	Snapshots  Snapshots
	Users      UserLister
	Saved      SavedItems
	Plans      Plans
	Tracker    Tracker
	CronSecret string
	Logger     *zap.Logger

	// AllowOrigins enables CORS for browser clients when non-empty.
	AllowOrigins []string
}

type Server struct {
	deps   Deps
	engine *gin.Engine
	logger *zap.Logger
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(recovery(deps.Logger), requestLogger(deps.Logger))
	if len(deps.AllowOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", HeaderUserID},
			AllowCredentials: true,
		}))
	}

	s := &Server{deps: deps, engine: engine, logger: deps.Logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api/strategist")
	api.POST("/cron", s.cron)

	user := api.Group("", requireUser())
	{
		user.GET("/today", s.today)
		user.GET("/dashboard", s.dashboard)
		user.POST("/refresh", s.refresh)
		user.GET("/items/:id/roadmap", s.itemRoadmap)
		user.GET("/items/:id/application", s.itemApplication)
		user.GET("/items/:id/saved", s.checkSaved)

		user.POST("/saved", s.saveItem)
		user.GET("/saved", s.listSaved)
		user.DELETE("/saved/:id", s.removeSaved)
		user.GET("/saved/:id/progress", s.getProgress)
		user.PUT("/saved/:id/progress", s.setProgress)
		user.POST("/saved/:id/complete", s.completeCheck)

		user.POST("/roadmaps/merge", s.mergeRoadmaps)
		user.GET("/roadmaps", s.listRoadmaps)
		user.GET("/roadmaps/:id", s.getRoadmap)
		user.DELETE("/roadmaps/:id", s.deleteRoadmap)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
