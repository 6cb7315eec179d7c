// Package trackserver exposes a tracking store over REST.
package trackserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/born-ml/trainer/internal/tracking"
)

// Backend is what the server needs from a store.
type Backend interface {
	tracking.Client
	tracking.Reader
}

// Handler serves the run endpoints.
type Handler struct {
	backend Backend
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(backend Backend, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{backend: backend, logger: logger.With("layer", "handler")}
}

// NewRouter returns a gin engine with the /api/v1 routes registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	{
		runs := v1.Group("/runs")
		{
			runs.POST("", h.CreateRun)
			runs.GET("", h.ListRuns)
			runs.GET("/:id", h.GetRun)
			runs.PATCH("/:id", h.FinishRun)
			runs.POST("/:id/metrics", h.LogMetrics)
		}
	}
	return r
}

// CreateRun handles POST /api/v1/runs.
func (h *Handler) CreateRun(ctx *gin.Context) {
	var spec tracking.RunSpec
	if err := ctx.ShouldBindJSON(&spec); err != nil {
		ctx.JSON(http.StatusBadRequest, tracking.ErrorResponse{Error: err.Error()})
		return
	}
	run, err := h.backend.CreateRun(ctx.Request.Context(), spec)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, run)
}

// LogMetrics handles POST /api/v1/runs/:id/metrics.
func (h *Handler) LogMetrics(ctx *gin.Context) {
	var req tracking.MetricsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, tracking.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.backend.LogMetrics(ctx.Request.Context(), ctx.Param("id"), req.Metrics, req.Step); err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// FinishRun handles PATCH /api/v1/runs/:id.
func (h *Handler) FinishRun(ctx *gin.Context) {
	var req tracking.FinishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, tracking.ErrorResponse{Error: err.Error()})
		return
	}
	id := ctx.Param("id")
	if err := h.backend.FinishRun(ctx.Request.Context(), id, req.Status); err != nil {
		h.writeError(ctx, err)
		return
	}
	h.respondRun(ctx, id)
}

// GetRun handles GET /api/v1/runs/:id.
func (h *Handler) GetRun(ctx *gin.Context) {
	h.respondRun(ctx, ctx.Param("id"))
}

// ListRuns handles GET /api/v1/runs?project=&group=.
func (h *Handler) ListRuns(ctx *gin.Context) {
	var filter tracking.RunFilter
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		ctx.JSON(http.StatusBadRequest, tracking.ErrorResponse{Error: err.Error()})
		return
	}
	runs, err := h.backend.ListRuns(ctx.Request.Context(), filter)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	if runs == nil {
		runs = []tracking.Run{}
	}
	ctx.JSON(http.StatusOK, runs)
}

func (h *Handler) respondRun(ctx *gin.Context, id string) {
	run, err := h.backend.GetRun(ctx.Request.Context(), id)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, run)
}

func (h *Handler) writeError(ctx *gin.Context, err error) {
	logger := h.logger.With("method", ctx.Request.Method, "path", ctx.FullPath())

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tracking.ErrInvalidRun):
		status = http.StatusBadRequest
	case errors.Is(err, tracking.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tracking.ErrRunFinished):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	ctx.JSON(status, tracking.ErrorResponse{Error: err.Error()})
}
