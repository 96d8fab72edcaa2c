package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

type reviewRequest struct {
	Action   string `json:"action" binding:"required"`
	Feedback string `json:"feedback"`
}

// SubmitReview resolves the content review gate for a waiting job.
func (h *Handler) SubmitReview(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		sendError(c, err)
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()})
		return
	}

	status, err := h.gates.SubmitReview(c.Request.Context(), id, req.Action, req.Feedback)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "status": status})
}

// HoldJob pauses a job waiting at the review gate.
func (h *Handler) HoldJob(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		sendError(c, err)
		return
	}

	if err := h.gates.Hold(c.Request.Context(), id); err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "status": "on_hold"})
}

// ResumeJob returns a held job to the review gate.
func (h *Handler) ResumeJob(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		sendError(c, err)
		return
	}

	if err := h.gates.Resume(c.Request.Context(), id); err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "status": "human_review"})
}

type deployRequest struct {
	Action string `json:"action" binding:"required"`
}

// DecideDeploy resolves the deploy gate for a waiting job.
func (h *Handler) DecideDeploy(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		sendError(c, err)
		return
	}

	var req deployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()})
		return
	}

	status, err := h.gates.DecideDeploy(c.Request.Context(), id, req.Action)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "status": status})
}

type editContentRequest struct {
	Content  string          `json:"content" binding:"required"`
	Metadata json.RawMessage `json:"metadata"`
}

// EditContent replaces the final content of a job waiting at the review gate.
func (h *Handler) EditContent(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		sendError(c, err)
		return
	}

	var req editContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()})
		return
	}

	if err := h.gates.EditContent(c.Request.Context(), id, req.Content, req.Metadata); err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "status": "human_review"})
}
