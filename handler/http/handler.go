// Package http exposes the pipeline over a JSON API and an SSE event stream.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/core/stream"
	"blogsmith/src/storage/minioctrl"
)

// Handler serves the pipeline API. thumbs is optional; without it the
// thumbnail endpoint reports the feature unavailable and deleted jobs leave
// their thumbnail objects behind.
type Handler struct {
	store  pipeline.Store
	gates  *pipeline.GateController
	queue  pipeline.Enqueuer
	hub    *stream.Hub
	thumbs *minioctrl.MinioService
}

func NewHandler(store pipeline.Store, gates *pipeline.GateController, queue pipeline.Enqueuer, hub *stream.Hub, thumbs *minioctrl.MinioService) *Handler {
	return &Handler{
		store:  store,
		gates:  gates,
		queue:  queue,
		hub:    hub,
		thumbs: thumbs,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	// Job routes
	v1.POST("/jobs", h.CreateJob)
	v1.GET("/jobs", h.ListJobs)
	v1.GET("/jobs/stats", h.GetStats)
	v1.GET("/jobs/:id", h.GetJob)
	v1.DELETE("/jobs/:id", h.DeleteJob)
	v1.PUT("/jobs/:id/content", h.EditContent)
	v1.GET("/jobs/:id/thumbnail", h.GetThumbnail)

	// Human gate routes
	v1.POST("/jobs/:id/review", h.SubmitReview)
	v1.POST("/jobs/:id/hold", h.HoldJob)
	v1.DELETE("/jobs/:id/hold", h.ResumeJob)
	v1.POST("/jobs/:id/deploy", h.DecideDeploy)

	// Event stream
	v1.GET("/jobs/:id/events", h.StreamEvents)

	// System routes
	v1.GET("/health", h.CheckHealth)
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, err error) {
	var (
		status  int
		code    string
		details interface{}
	)

	var stateErr *pipeline.InvalidStateError
	var inputErr *pipeline.InvalidInputError
	switch {
	case errors.Is(err, pipeline.ErrJobNotFound):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case errors.As(err, &stateErr):
		code = "INVALID_STATE"
		status = http.StatusConflict
		details = gin.H{"currentStatus": stateErr.Current}
	case errors.As(err, &inputErr):
		code = "INVALID_INPUT"
		status = http.StatusBadRequest
		details = gin.H{"field": inputErr.Field}
	default:
		code = "INTERNAL_ERROR"
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
		Details: details,
	})
}

// CheckHealth reports service liveness.
func (h *Handler) CheckHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
