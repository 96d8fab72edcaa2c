package http

import (
	"io"

	"github.com/gin-gonic/gin"

	"blogsmith/src/core/pipeline"
)

// StreamEvents streams a job's events over SSE. The first event is a snapshot
// built from the current job state, so a reconnecting client catches up
// without replaying history; live events follow until the job reaches a
// terminal state or the client disconnects.
func (h *Handler) StreamEvents(c *gin.Context) {
	id, err := jobID(c)
	if err != nil {
		sendError(c, err)
		return
	}

	// Subscribe before reading the snapshot: a transition published between
	// the two would otherwise be in neither, and a missed terminal event
	// leaves the stream hanging.
	token, events := h.hub.Subscribe(id)
	defer h.hub.Unsubscribe(id, token)

	job, err := h.store.GetJob(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	snapshot := snapshotEvent(job)
	c.SSEvent(string(snapshot.Kind), snapshot)
	c.Writer.Flush()
	if terminalEvent(snapshot.Kind) {
		return
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return !terminalEvent(ev.Kind)
		}
	})
}

// snapshotEvent derives the catch-up event from current job state.
func snapshotEvent(job *pipeline.Job) pipeline.Event {
	ev := pipeline.Event{
		JobID:     job.ID,
		Kind:      pipeline.EventProgress,
		Step:      job.CurrentStep,
		Progress:  job.Progress,
		JobStatus: job.Status,
	}

	switch job.Status {
	case pipeline.StatusHumanReview, pipeline.StatusOnHold, pipeline.StatusPendingDeploy:
		ev.Kind = pipeline.EventReviewRequired
	case pipeline.StatusCompleted:
		ev.Kind = pipeline.EventComplete
	case pipeline.StatusFailed:
		ev.Kind = pipeline.EventError
		if job.Error != nil {
			ev.Message = *job.Error
		}
	}
	return ev
}

func terminalEvent(kind pipeline.EventKind) bool {
	return kind == pipeline.EventComplete || kind == pipeline.EventError
}
