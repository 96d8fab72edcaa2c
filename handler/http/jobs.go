package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/log"
)

type createJobRequest struct {
	Topic        string `json:"topic" binding:"required"`
	Category     string `json:"category" binding:"required,oneof=tech life"`
	Template     string `json:"template"`
	Tone         string `json:"tone"`
	TargetReader string `json:"targetReader"`
	AutoApprove  bool   `json:"autoApprove"`
}

// CreateJob accepts a generation request and enqueues its first phase. The
// response returns before any pipeline work happens.
func (h *Handler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		})
		return
	}

	job, err := h.store.CreateJob(c.Request.Context(), pipeline.CreateJobRequest{
		Topic:        req.Topic,
		Category:     pipeline.Category(req.Category),
		Template:     req.Template,
		Tone:         req.Tone,
		TargetReader: req.TargetReader,
		AutoApprove:  req.AutoApprove,
	})
	if err != nil {
		sendError(c, err)
		return
	}

	if err := h.queue.EnqueuePhase(c.Request.Context(), job.ID, pipeline.PhaseStart); err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":     job.ID,
		"status":    job.Status,
		"streamUrl": fmt.Sprintf("/api/v1/jobs/%d/events", job.ID),
	})
}

// ListJobs returns a filtered, paginated job listing.
func (h *Handler) ListJobs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	jobs, total, err := h.store.ListJobs(c.Request.Context(), pipeline.JobFilter{
		Page:     page,
		Limit:    limit,
		Status:   pipeline.Status(c.Query("status")),
		Category: pipeline.Category(c.Query("category")),
		Search:   c.Query("search"),
	})
	if err != nil {
		sendError(c, err)
		return
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	c.JSON(http.StatusOK, gin.H{
		"jobs":       jobs,
		"total":      total,
		"page":       page,
		"limit":      limit,
		"totalPages": totalPages,
	})
}

// GetJob returns one job with its full progress log.
func (h *Handler) GetJob(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		sendError(c, err)
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}

	progress, err := h.store.ListProgress(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job":      job,
		"progress": progress,
	})
}

// DeleteJob removes a job, its progress log and its stored thumbnail.
func (h *Handler) DeleteJob(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		sendError(c, err)
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}

	if err := h.store.DeleteJob(c.Request.Context(), id); err != nil {
		sendError(c, err)
		return
	}

	if h.thumbs != nil && job.ThumbnailPath != "" {
		bucket, object := h.thumbs.GetBucketAndObjectFromPath(job.ThumbnailPath)
		if bucket != "" {
			if err := h.thumbs.DeleteObject(c.Request.Context(), bucket, object); err != nil {
				log.Error(err, "failed to delete thumbnail object", "job_id", id, "path", job.ThumbnailPath)
			}
		}
	}
	c.Status(http.StatusNoContent)
}

// GetThumbnail streams a job's thumbnail image from object storage.
func (h *Handler) GetThumbnail(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		sendError(c, err)
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}
	if h.thumbs == nil || job.ThumbnailPath == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "job has no thumbnail"})
		return
	}

	bucket, object := h.thumbs.GetBucketAndObjectFromPath(job.ThumbnailPath)
	if bucket == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "job has no thumbnail"})
		return
	}

	data, err := h.thumbs.GetObject(c.Request.Context(), bucket, object)
	if err != nil {
		sendError(c, err)
		return
	}
	c.Data(http.StatusOK, mimeForObject(object), data)
}

func mimeForObject(object string) string {
	switch {
	case strings.HasSuffix(object, ".jpg"), strings.HasSuffix(object, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(object, ".webp"):
		return "image/webp"
	default:
		return "image/png"
	}
}

// GetStats returns aggregate job counts.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func jobID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, &pipeline.InvalidInputError{Field: "id", Reason: "job id must be an integer"}
	}
	return id, nil
}
