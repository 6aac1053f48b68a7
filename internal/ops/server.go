// Package ops exposes the robot's operational HTTP endpoints: a health probe
// and the batch-run history.
package ops

import (
	"context"
	"errors"
	"net/http"
	"time"

	"journalize_robot_backend/internal/journalizing/repository"
	"journalize_robot_backend/internal/scheduler"
	"journalize_robot_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunLister reads the batch-run history.
type RunLister interface {
	ListRecentRuns(ctx context.Context, limit int) ([]repository.BatchRun, error)
}

// Server serves the operational endpoints.
type Server struct {
	engine      *gin.Engine
	rpaPool     *pgxpool.Pool
	recordsPool *pgxpool.Pool
	runs        RunLister
	dispatcher  scheduler.BatchDispatcher
	log         *logger.Logger
}

// New creates the ops server.
func New(env string, rpaPool, recordsPool *pgxpool.Pool, runs RunLister, dispatcher scheduler.BatchDispatcher, log *logger.Logger) *Server {
	if env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:      gin.New(),
		rpaPool:     rpaPool,
		recordsPool: recordsPool,
		runs:        runs,
		dispatcher:  dispatcher,
		log:         log,
	}

	s.engine.Use(gin.Recovery())
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/runs", s.handleRuns)
	s.engine.POST("/journalize", s.handleDispatch)

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := s.rpaPool.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "component": "metadata_store"})
		return
	}
	if err := s.recordsPool.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "component": "records_store"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type listRunsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type runResponse struct {
	ID         string     `json:"id"`
	WebformID  string     `json:"webformId"`
	State      string     `json:"state"`
	Succeeded  int        `json:"succeeded"`
	Manual     int        `json:"manual"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func (s *Server) handleRuns(c *gin.Context) {
	var query listRunsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	if query.Limit == 0 {
		query.Limit = 20
	}

	runs, err := s.runs.ListRecentRuns(c.Request.Context(), query.Limit)
	if err != nil {
		s.log.DatabaseError("list batch runs", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			ID:         run.ID.String(),
			WebformID:  run.WebformID,
			State:      run.State,
			Succeeded:  run.Succeeded,
			Manual:     run.Manual,
			Failed:     run.Failed,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"runs": out})
}

type dispatchRequest struct {
	WebformID string `json:"webformId" binding:"required"`
}

// handleDispatch enqueues a batch for the worker instead of running it
// inline; batches share the single records session and must stay sequential.
func (s *Server) handleDispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "webformId is required"})
		return
	}

	payload := scheduler.JournalizeBatchPayload{WebformID: req.WebformID}
	if err := s.dispatcher.DispatchBatch(c.Request.Context(), payload); err != nil {
		s.log.Error("failed to dispatch batch", "webform_id", req.WebformID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to dispatch batch"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"webformId": req.WebformID, "status": "queued"})
}
