package pipeline

import (
	"context"
	"encoding/json"
	"time"
)

// Job is one end-to-end request to generate a blog post. Artifacts are each
// written by exactly one step and read by later steps or by humans.
type Job struct {
	ID int64 `gorm:"primaryKey" json:"id"`

	// Immutable inputs.
	Topic        string   `gorm:"not null" json:"topic"`
	Category     Category `gorm:"not null" json:"category"`
	Template     string   `json:"template,omitempty"`
	Tone         string   `json:"tone,omitempty"`
	TargetReader string   `gorm:"column:target_reader" json:"targetReader,omitempty"`
	AutoApprove  bool     `json:"autoApprove"`

	// Workflow state.
	Status      Status `gorm:"not null;index" json:"status"`
	CurrentStep string `gorm:"column:current_step" json:"currentStep"`
	Progress    int    `json:"progress"`

	// Step artifacts.
	ResearchData     string          `json:"researchData,omitempty"`
	DraftContent     string          `json:"draftContent,omitempty"`
	ReviewResult     string          `json:"reviewResult,omitempty"`
	FinalContent     string          `json:"finalContent,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	ValidationResult json.RawMessage `json:"validationResult,omitempty"`
	Filepath         string          `json:"filepath,omitempty"`
	ThumbnailPath    string          `json:"thumbnailPath,omitempty"`
	CommitHash       string          `json:"commitHash,omitempty"`
	PRURL            string          `gorm:"column:pr_url" json:"prUrl,omitempty"`

	// Human interaction.
	HumanApproval *bool  `json:"humanApproval,omitempty"`
	HumanFeedback string `json:"humanFeedback,omitempty"`

	// Set only on terminal failure.
	Error *string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressEntry is one immutable audit-trail event tied to a job. Entries are
// strictly ordered by ID, which the store assigns monotonically.
type ProgressEntry struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	JobID     int64           `gorm:"not null;index" json:"job_id"`
	Step      string          `gorm:"not null" json:"step"`
	Status    string          `gorm:"not null" json:"status"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateJobRequest carries the immutable inputs for a new job.
type CreateJobRequest struct {
	Topic        string
	Category     Category
	Template     string
	Tone         string
	TargetReader string
	AutoApprove  bool
}

// JobUpdate is a partial update of mutable job fields. Nil pointers leave the
// field untouched.
type JobUpdate struct {
	Progress         *int
	ResearchData     *string
	DraftContent     *string
	ReviewResult     *string
	FinalContent     *string
	Metadata         json.RawMessage
	ValidationResult json.RawMessage
	Filepath         *string
	ThumbnailPath    *string
	CommitHash       *string
	PRURL            *string
	HumanApproval    *bool
	HumanFeedback    *string
	Error            *string
}

// JobFilter selects and pages a job listing. Search matches a substring of
// the topic.
type JobFilter struct {
	Page     int
	Limit    int
	Status   Status
	Category Category
	Search   string
}

// Stats aggregates job counts. PendingReview counts jobs waiting on a human
// gate (human_review, on_hold, pending_deploy).
type Stats struct {
	Total         int64   `json:"total"`
	Completed     int64   `json:"completed"`
	Failed        int64   `json:"failed"`
	PendingReview int64   `json:"pendingReview"`
	SuccessRate   float64 `json:"successRate"`
}

// Store is the persistent record of jobs and their progress logs. All
// mutations persist before returning.
type Store interface {
	CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error)
	GetJob(ctx context.Context, id int64) (*Job, error)
	// UpdateJob merges fields and bumps updated_at.
	UpdateJob(ctx context.Context, id int64, upd JobUpdate) error
	// Transition moves a job to a new status only when its current status is
	// one of from; an empty from list means any non-terminal status. The
	// status, derived step label, progress and upd fields are written in a
	// single guarded update so a gate decision and an in-flight step cannot
	// interleave inconsistently.
	Transition(ctx context.Context, id int64, from []Status, to Status, upd JobUpdate) error
	AppendProgress(ctx context.Context, entry *ProgressEntry) error
	ListProgress(ctx context.Context, jobID int64) ([]ProgressEntry, error)
	ListJobs(ctx context.Context, f JobFilter) ([]Job, int64, error)
	DeleteJob(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*Stats, error)
}
