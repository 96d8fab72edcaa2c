package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"blogsmith/src/log"
)

// DefaultStepTimeout bounds a single external tool invocation. Expiry is
// treated as a step failure so jobs cannot stay stuck mid-step.
const DefaultStepTimeout = 5 * time.Minute

// Phase names one resumable segment of the pipeline. Phases are the units
// enqueued onto the task queue; each requires the job to sit in its entry
// status, so a duplicate invocation is a no-op error instead of a re-run.
type Phase string

const (
	// PhaseStart runs research, drafting and AI review, then suspends at the
	// human review gate.
	PhaseStart Phase = "start"
	// PhaseRewrite re-drafts with human feedback and returns to the gate.
	PhaseRewrite Phase = "rewrite"
	// PhaseFinalize refines content, builds metadata and the thumbnail,
	// writes the file and validates it, then suspends at the deploy gate.
	PhaseFinalize Phase = "finalize"
	// PhaseDeploy publishes the file as a pull request.
	PhaseDeploy Phase = "deploy"
)

var phaseEntry = map[Phase]Status{
	PhaseStart:    StatusQueued,
	PhaseRewrite:  StatusWriting,
	PhaseFinalize: StatusCreating,
	PhaseDeploy:   StatusDeploying,
}

// ExecutorConfig wires the executor's collaborators. Thumbnailer and
// PullRequester are optional; without a Thumbnailer posts ship without a
// thumbnail, without a PullRequester the deploy phase fails the job.
type ExecutorConfig struct {
	Store         Store
	Tools         Toolchain
	Thumbnailer   Thumbnailer
	Files         FileCreator
	Validator     Validator
	PullRequester PullRequester
	Notifier      Notifier
	StepTimeout   time.Duration
}

// Executor advances one job through the pipeline. Steps within a job never
// run concurrently: each phase runs steps in sequence, and the guarded status
// transitions reject a second executor working the same job.
type Executor struct {
	store       Store
	tools       Toolchain
	thumbs      Thumbnailer
	files       FileCreator
	validator   Validator
	pr          PullRequester
	notifier    Notifier
	stepTimeout time.Duration
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	e := &Executor{
		store:       cfg.Store,
		tools:       cfg.Tools,
		thumbs:      cfg.Thumbnailer,
		files:       cfg.Files,
		validator:   cfg.Validator,
		pr:          cfg.PullRequester,
		notifier:    cfg.Notifier,
		stepTimeout: cfg.StepTimeout,
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.stepTimeout <= 0 {
		e.stepTimeout = DefaultStepTimeout
	}
	return e
}

// Run executes one phase of the job's pipeline. A job not sitting in the
// phase's entry status yields an InvalidStateError without mutating anything.
func (e *Executor) Run(ctx context.Context, jobID int64, phase Phase) error {
	entry, ok := phaseEntry[phase]
	if !ok {
		return &InvalidInputError{Field: "phase", Reason: fmt.Sprintf("unknown phase %q", phase)}
	}

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != entry {
		return &InvalidStateError{JobID: jobID, Current: job.Status, Wanted: []Status{entry}}
	}

	switch phase {
	case PhaseStart:
		return e.runStart(ctx, job)
	case PhaseRewrite:
		return e.runRewrite(ctx, job)
	case PhaseFinalize:
		return e.runFinalize(ctx, job)
	default:
		return e.runDeploy(ctx, job)
	}
}

func (e *Executor) runStart(ctx context.Context, job *Job) error {
	err := e.runStep(ctx, job, StatusQueued, StatusResearch, func(stepCtx context.Context) (JobUpdate, string, error) {
		research, err := e.tools.Research(stepCtx, job.Topic, job.Category)
		if err != nil {
			return JobUpdate{}, "", err
		}
		job.ResearchData = research
		return JobUpdate{ResearchData: &research}, "research completed", nil
	})
	if err != nil {
		return err
	}

	err = e.runStep(ctx, job, StatusResearch, StatusWriting, func(stepCtx context.Context) (JobUpdate, string, error) {
		draft, err := e.tools.Draft(stepCtx, DraftRequest{
			Topic:        job.Topic,
			Category:     job.Category,
			Research:     job.ResearchData,
			Template:     job.Template,
			Tone:         job.Tone,
			TargetReader: job.TargetReader,
		})
		if err != nil {
			return JobUpdate{}, "", err
		}
		job.DraftContent = draft
		return JobUpdate{DraftContent: &draft}, "draft completed", nil
	})
	if err != nil {
		return err
	}

	return e.reviewAndGate(ctx, job)
}

func (e *Executor) runRewrite(ctx context.Context, job *Job) error {
	err := e.runStep(ctx, job, StatusWriting, StatusWriting, func(stepCtx context.Context) (JobUpdate, string, error) {
		draft, err := e.tools.Draft(stepCtx, DraftRequest{
			Topic:        job.Topic,
			Category:     job.Category,
			Research:     job.ResearchData,
			Template:     job.Template,
			Tone:         job.Tone,
			TargetReader: job.TargetReader,
			Draft:        job.DraftContent,
			Feedback:     job.HumanFeedback,
		})
		if err != nil {
			return JobUpdate{}, "", err
		}
		job.DraftContent = draft
		return JobUpdate{DraftContent: &draft}, "draft rewritten with reviewer feedback", nil
	})
	if err != nil {
		return err
	}

	return e.reviewAndGate(ctx, job)
}

// reviewAndGate runs the AI review step and suspends at the human review
// gate, or bypasses it for auto-approved jobs.
func (e *Executor) reviewAndGate(ctx context.Context, job *Job) error {
	err := e.runStep(ctx, job, StatusWriting, StatusReview, func(stepCtx context.Context) (JobUpdate, string, error) {
		review, err := e.tools.Review(stepCtx, job.DraftContent)
		if err != nil {
			return JobUpdate{}, "", err
		}
		job.ReviewResult = review
		return JobUpdate{ReviewResult: &review}, "AI review completed", nil
	})
	if err != nil {
		return err
	}

	if job.AutoApprove {
		approved := true
		if err := e.transition(ctx, job, []Status{StatusReview}, StatusCreating, JobUpdate{HumanApproval: &approved}); err != nil {
			return err
		}
		// Bypass is still logged for audit parity with a human decision.
		e.logEntry(ctx, job, "human_review", EntryCompleted, "review auto-approved by schedule", EventProgress, nil)
		return e.runFinalize(ctx, job)
	}

	if err := e.transition(ctx, job, []Status{StatusReview}, StatusHumanReview, JobUpdate{}); err != nil {
		return err
	}
	e.logEntry(ctx, job, "human_review", EntryStarted, "awaiting human review", EventReviewRequired, nil)
	return nil
}

func (e *Executor) runFinalize(ctx context.Context, job *Job) error {
	var meta *PostMeta

	err := e.runStep(ctx, job, StatusCreating, StatusCreating, func(stepCtx context.Context) (JobUpdate, string, error) {
		final := job.FinalContent
		if final == "" {
			refined, err := e.tools.Refine(stepCtx, job.DraftContent, job.ReviewResult)
			if err != nil {
				return JobUpdate{}, "", err
			}
			final = refined
		}

		m, err := e.tools.Metadata(stepCtx, job.Topic, job.Category, final)
		if err != nil {
			return JobUpdate{}, "", err
		}

		upd := JobUpdate{FinalContent: &final}
		if e.thumbs != nil {
			thumb, err := e.thumbs.GenerateThumbnail(stepCtx, m, job.Category, "")
			if err != nil {
				return JobUpdate{}, "", fmt.Errorf("thumbnail generation: %w", err)
			}
			m.Thumbnail = thumb.Path
			upd.ThumbnailPath = &thumb.Path
			job.ThumbnailPath = thumb.Path
		}

		metaJSON, err := json.Marshal(m)
		if err != nil {
			return JobUpdate{}, "", fmt.Errorf("marshal metadata: %w", err)
		}
		upd.Metadata = metaJSON

		job.FinalContent = final
		job.Metadata = metaJSON
		meta = m
		return upd, "content refined and metadata prepared", nil
	})
	if err != nil {
		return err
	}

	err = e.runStep(ctx, job, StatusCreating, StatusCreateFile, func(stepCtx context.Context) (JobUpdate, string, error) {
		path, err := e.files.CreateFile(stepCtx, job.FinalContent, meta)
		if err != nil {
			return JobUpdate{}, "", err
		}
		job.Filepath = path
		return JobUpdate{Filepath: &path}, fmt.Sprintf("file created at %s", path), nil
	})
	if err != nil {
		return err
	}

	err = e.runStep(ctx, job, StatusCreateFile, StatusValidating, func(stepCtx context.Context) (JobUpdate, string, error) {
		result, err := e.validator.Validate(stepCtx, job.Filepath)
		if err != nil {
			return JobUpdate{}, "", err
		}
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return JobUpdate{}, "", fmt.Errorf("marshal validation result: %w", err)
		}
		if !result.Valid {
			// Persist the findings before failing so they survive for diagnosis.
			if uerr := e.store.UpdateJob(stepCtx, job.ID, JobUpdate{ValidationResult: resultJSON}); uerr != nil {
				log.Error(uerr, "failed to persist validation result", "job_id", job.ID)
			}
			return JobUpdate{}, "", fmt.Errorf("validation failed: %s", strings.Join(result.Problems, "; "))
		}
		job.ValidationResult = resultJSON
		return JobUpdate{ValidationResult: resultJSON}, "validation passed", nil
	})
	if err != nil {
		return err
	}

	if err := e.transition(ctx, job, []Status{StatusValidating}, StatusPendingDeploy, JobUpdate{}); err != nil {
		return err
	}
	e.logEntry(ctx, job, "deploy", EntryStarted, "awaiting deploy decision", EventProgress, nil)
	return nil
}

func (e *Executor) runDeploy(ctx context.Context, job *Job) error {
	err := e.runStep(ctx, job, StatusDeploying, StatusDeploying, func(stepCtx context.Context) (JobUpdate, string, error) {
		if e.pr == nil {
			return JobUpdate{}, "", fmt.Errorf("no pull request integration configured")
		}
		var meta PostMeta
		if err := json.Unmarshal(job.Metadata, &meta); err != nil {
			return JobUpdate{}, "", fmt.Errorf("decode metadata: %w", err)
		}
		result, err := e.pr.CreatePullRequest(stepCtx, job.Filepath, job.FinalContent, &meta)
		if err != nil {
			return JobUpdate{}, "", err
		}
		job.CommitHash = result.CommitHash
		job.PRURL = result.URL
		return JobUpdate{CommitHash: &result.CommitHash, PRURL: &result.URL},
			fmt.Sprintf("pull request created: %s", result.URL), nil
	})
	if err != nil {
		return err
	}

	if err := e.transition(ctx, job, []Status{StatusDeploying}, StatusCompleted, JobUpdate{}); err != nil {
		return err
	}
	artifacts, _ := json.Marshal(map[string]string{
		"filepath":   job.Filepath,
		"commitHash": job.CommitHash,
		"prUrl":      job.PRURL,
	})
	e.logEntry(ctx, job, "deploy", EntryCompleted, "job completed", EventComplete, artifacts)
	return nil
}

// runStep moves the job into the step's status, invokes the tool under the
// step timeout, persists the artifact and logs the outcome. A transition
// conflict (another actor moved the job) is returned as-is; a tool or
// persistence failure marks the job failed.
func (e *Executor) runStep(ctx context.Context, job *Job, from, at Status, fn func(context.Context) (JobUpdate, string, error)) error {
	label := StepLabel(at)

	if err := e.transition(ctx, job, []Status{from}, at, JobUpdate{}); err != nil {
		return err
	}
	e.logEntry(ctx, job, label, EntryStarted, label+" step started", EventProgress, nil)

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	upd, msg, err := fn(stepCtx)
	cancel()
	if err != nil {
		return e.fail(ctx, job, label, err)
	}

	if err := e.store.UpdateJob(ctx, job.ID, upd); err != nil {
		return e.fail(ctx, job, label, fmt.Errorf("persist %s artifact: %w", label, err))
	}
	e.logEntry(ctx, job, label, EntryCompleted, msg, EventProgress, nil)
	return nil
}

func (e *Executor) transition(ctx context.Context, job *Job, from []Status, to Status, upd JobUpdate) error {
	if err := e.store.Transition(ctx, job.ID, from, to, upd); err != nil {
		return err
	}
	job.Status = to
	job.CurrentStep = StepLabel(to)
	if p, ok := ProgressFor(to); ok {
		job.Progress = p
	}
	return nil
}

// fail records a terminal step failure: status, error field, progress entry
// and error event. Background failures must always reach the store.
func (e *Executor) fail(ctx context.Context, job *Job, step string, stepErr error) error {
	msg := stepErr.Error()
	if terr := e.store.Transition(ctx, job.ID, nil, StatusFailed, JobUpdate{Error: &msg}); terr != nil {
		log.Error(terr, "failed to mark job as failed", "job_id", job.ID, "step", step)
	}
	job.Status = StatusFailed
	e.logEntry(ctx, job, step, EntryFailed, msg, EventError, nil)
	return fmt.Errorf("%s step failed: %w", step, stepErr)
}

func (e *Executor) logEntry(ctx context.Context, job *Job, step, status, msg string, kind EventKind, data json.RawMessage) {
	entry := &ProgressEntry{
		JobID:   job.ID,
		Step:    step,
		Status:  status,
		Message: msg,
		Data:    data,
	}
	if err := e.store.AppendProgress(ctx, entry); err != nil {
		log.Error(err, "failed to append progress entry", "job_id", job.ID, "step", step)
	}
	e.notifier.Notify(ctx, Event{
		JobID:      job.ID,
		Kind:       kind,
		Step:       step,
		StepStatus: status,
		Message:    msg,
		Progress:   job.Progress,
		JobStatus:  job.Status,
		Data:       data,
	})
}
