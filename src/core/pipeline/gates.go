package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"blogsmith/src/log"
)

// Review gate actions.
const (
	ActionApprove  = "approve"
	ActionFeedback = "feedback"
	ActionRewrite  = "rewrite"
	ActionReject   = "reject"
	ActionSkip     = "skip"
)

// Enqueuer schedules a pipeline phase for background execution. The
// triggering call returns once the task is queued; the queue guarantees the
// phase runs detached from any client connection.
type Enqueuer interface {
	EnqueuePhase(ctx context.Context, jobID int64, phase Phase) error
}

// GateController mediates the state transitions that require an external
// human decision. Every action is validated against the job's current status
// through a guarded transition, so a wrong-state request fails cleanly
// without mutating anything.
type GateController struct {
	store    Store
	queue    Enqueuer
	notifier Notifier
}

func NewGateController(store Store, queue Enqueuer, notifier Notifier) *GateController {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &GateController{store: store, queue: queue, notifier: notifier}
}

// SubmitReview resolves the human content review gate. Approve advances the
// job toward creating; feedback and rewrite send it back to writing with the
// stored feedback as drafting input.
func (g *GateController) SubmitReview(ctx context.Context, jobID int64, action, feedback string) (Status, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	feedback = strings.TrimSpace(feedback)

	switch action {
	case ActionApprove:
		approved := true
		if err := g.store.Transition(ctx, jobID, []Status{StatusHumanReview}, StatusCreating, JobUpdate{HumanApproval: &approved}); err != nil {
			return "", err
		}
		g.logGate(ctx, jobID, StatusCreating, "human_review", EntryCompleted, "review approved", EventProgress)
		if err := g.queue.EnqueuePhase(ctx, jobID, PhaseFinalize); err != nil {
			return "", fmt.Errorf("enqueue finalize phase: %w", err)
		}
		return StatusCreating, nil

	case ActionFeedback, ActionRewrite:
		// Request validation runs before the store is consulted, like the
		// unknown-action branch: a malformed request reports InvalidInput
		// even when the job does not exist.
		if feedback == "" {
			return "", &InvalidInputError{Field: "feedback", Reason: "feedback text is required"}
		}
		rejected := false
		upd := JobUpdate{HumanApproval: &rejected, HumanFeedback: &feedback}
		if err := g.store.Transition(ctx, jobID, []Status{StatusHumanReview}, StatusWriting, upd); err != nil {
			return "", err
		}
		g.logGate(ctx, jobID, StatusWriting, "human_review", EntryCompleted, "review rejected with feedback", EventProgress)
		if err := g.queue.EnqueuePhase(ctx, jobID, PhaseRewrite); err != nil {
			return "", fmt.Errorf("enqueue rewrite phase: %w", err)
		}
		return StatusWriting, nil

	default:
		return "", &InvalidInputError{Field: "action", Reason: fmt.Sprintf("unsupported review action %q", action)}
	}
}

// Hold pauses a job waiting at the human review gate. It has no effect on
// artifacts and cannot interrupt an already-executing step.
func (g *GateController) Hold(ctx context.Context, jobID int64) error {
	if err := g.store.Transition(ctx, jobID, []Status{StatusHumanReview}, StatusOnHold, JobUpdate{}); err != nil {
		return err
	}
	g.logGate(ctx, jobID, StatusOnHold, "hold", EntryCompleted, "job placed on hold", EventProgress)
	return nil
}

// Resume returns a held job to the human review gate.
func (g *GateController) Resume(ctx context.Context, jobID int64) error {
	if err := g.store.Transition(ctx, jobID, []Status{StatusOnHold}, StatusHumanReview, JobUpdate{}); err != nil {
		return err
	}
	g.logGate(ctx, jobID, StatusHumanReview, "hold", EntryCompleted, "job resumed from hold", EventReviewRequired)
	return nil
}

// DecideDeploy resolves the deploy gate. Approve launches the deploy phase;
// reject and skip complete the job without creating a pull request, leaving
// the generated file where it was written.
func (g *GateController) DecideDeploy(ctx context.Context, jobID int64, action string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionApprove:
		if err := g.store.Transition(ctx, jobID, []Status{StatusPendingDeploy}, StatusDeploying, JobUpdate{}); err != nil {
			return "", err
		}
		g.logGate(ctx, jobID, StatusDeploying, "deploy", EntryProgress, "deploy approved", EventProgress)
		if err := g.queue.EnqueuePhase(ctx, jobID, PhaseDeploy); err != nil {
			return "", fmt.Errorf("enqueue deploy phase: %w", err)
		}
		return StatusDeploying, nil

	case ActionReject, ActionSkip:
		if err := g.store.Transition(ctx, jobID, []Status{StatusPendingDeploy}, StatusCompleted, JobUpdate{}); err != nil {
			return "", err
		}
		g.logGate(ctx, jobID, StatusCompleted, "deploy", EntryCompleted, "deploy skipped, no pull request created", EventComplete)
		return StatusCompleted, nil

	default:
		return "", &InvalidInputError{Field: "action", Reason: fmt.Sprintf("unsupported deploy action %q", action)}
	}
}

// EditContent replaces the final content (and optionally metadata) of a job
// waiting at the human review gate.
func (g *GateController) EditContent(ctx context.Context, jobID int64, content string, metadata json.RawMessage) error {
	if strings.TrimSpace(content) == "" {
		return &InvalidInputError{Field: "content", Reason: "content is required"}
	}

	job, err := g.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusHumanReview {
		return &InvalidStateError{JobID: jobID, Current: job.Status, Wanted: []Status{StatusHumanReview}}
	}

	upd := JobUpdate{FinalContent: &content}
	if len(metadata) > 0 {
		upd.Metadata = metadata
	}
	if err := g.store.UpdateJob(ctx, jobID, upd); err != nil {
		return err
	}
	g.logGate(ctx, jobID, StatusHumanReview, "human_review", EntryProgress, "content edited by reviewer", EventProgress)
	return nil
}

func (g *GateController) logGate(ctx context.Context, jobID int64, status Status, step, entryStatus, msg string, kind EventKind) {
	entry := &ProgressEntry{JobID: jobID, Step: step, Status: entryStatus, Message: msg}
	if err := g.store.AppendProgress(ctx, entry); err != nil {
		log.Error(err, "failed to append gate progress entry", "job_id", jobID, "step", step)
	}
	progress := 0
	if p, ok := ProgressFor(status); ok {
		progress = p
	}
	g.notifier.Notify(ctx, Event{
		JobID:      jobID,
		Kind:       kind,
		Step:       step,
		StepStatus: entryStatus,
		Message:    msg,
		Progress:   progress,
		JobStatus:  status,
	})
}
