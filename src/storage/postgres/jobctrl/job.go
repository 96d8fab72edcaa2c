package jobctrl

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"blogsmith/src/core/pipeline"
)

// JobService is the Postgres-backed pipeline store. Job and progress entry
// IDs come from a snowflake node so progress rows are monotonically ordered
// without relying on clock resolution.
type JobService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewJobService(db *gorm.DB) (*JobService, error) {
	node, err := snowflake.NewNode(1) // Node number 1 for jobs
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &JobService{
		db:        db,
		snowflake: node,
	}, nil
}

var _ pipeline.Store = (*JobService)(nil)

// AutoMigrate creates or updates the jobs and progress_entries tables.
func (s *JobService) AutoMigrate() error {
	return s.db.AutoMigrate(&pipeline.Job{}, &pipeline.ProgressEntry{})
}

func (s *JobService) CreateJob(ctx context.Context, req pipeline.CreateJobRequest) (*pipeline.Job, error) {
	job := &pipeline.Job{
		ID:           s.snowflake.Generate().Int64(),
		Topic:        req.Topic,
		Category:     req.Category,
		Template:     req.Template,
		Tone:         req.Tone,
		TargetReader: req.TargetReader,
		AutoApprove:  req.AutoApprove,
		Status:       pipeline.StatusQueued,
		CurrentStep:  pipeline.StepLabel(pipeline.StatusQueued),
		Progress:     0,
	}

	result := s.db.WithContext(ctx).Create(job)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create job: %v", result.Error)
	}

	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, id int64) (*pipeline.Job, error) {
	var job pipeline.Job
	result := s.db.WithContext(ctx).First(&job, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pipeline.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %v", result.Error)
	}
	return &job, nil
}

func (s *JobService) UpdateJob(ctx context.Context, id int64, upd pipeline.JobUpdate) error {
	changes := updateMap(upd)
	if len(changes) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&pipeline.Job{}).Where("id = ?", id).Updates(changes)
	if result.Error != nil {
		return fmt.Errorf("failed to update job: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return pipeline.ErrJobNotFound
	}
	return nil
}

// Transition performs the guarded status update. The WHERE clause on the
// current status is what serializes a gate decision against an in-flight
// executor step touching the same row.
func (s *JobService) Transition(ctx context.Context, id int64, from []pipeline.Status, to pipeline.Status, upd pipeline.JobUpdate) error {
	changes := updateMap(upd)
	changes["status"] = to
	if to != pipeline.StatusFailed {
		changes["current_step"] = pipeline.StepLabel(to)
		if p, ok := pipeline.ProgressFor(to); ok && upd.Progress == nil {
			changes["progress"] = p
		}
	}

	tx := s.db.WithContext(ctx).Model(&pipeline.Job{}).Where("id = ?", id)
	if len(from) > 0 {
		tx = tx.Where("status IN ?", from)
	} else {
		tx = tx.Where("status NOT IN ?", []pipeline.Status{pipeline.StatusCompleted, pipeline.StatusFailed})
	}

	result := tx.Updates(changes)
	if result.Error != nil {
		return fmt.Errorf("failed to transition job: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return err
		}
		return &pipeline.InvalidStateError{JobID: id, Current: job.Status, Wanted: from}
	}
	return nil
}

func (s *JobService) AppendProgress(ctx context.Context, entry *pipeline.ProgressEntry) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&pipeline.Job{}).Where("id = ?", entry.JobID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check job existence: %v", err)
	}
	if count == 0 {
		return pipeline.ErrJobNotFound
	}

	entry.ID = s.snowflake.Generate().Int64()
	result := s.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to append progress entry: %v", result.Error)
	}
	return nil
}

func (s *JobService) ListProgress(ctx context.Context, jobID int64) ([]pipeline.ProgressEntry, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&pipeline.Job{}).Where("id = ?", jobID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check job existence: %v", err)
	}
	if count == 0 {
		return nil, pipeline.ErrJobNotFound
	}

	var entries []pipeline.ProgressEntry
	result := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list progress entries: %v", result.Error)
	}
	return entries, nil
}

func (s *JobService) ListJobs(ctx context.Context, f pipeline.JobFilter) ([]pipeline.Job, int64, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}

	query := s.db.WithContext(ctx).Model(&pipeline.Job{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		query = query.Where("topic ILIKE ?", "%"+f.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %v", err)
	}

	// Empty pages serialize as [] rather than null.
	jobs := []pipeline.Job{}
	result := query.
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&jobs)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %v", result.Error)
	}
	return jobs, total, nil
}

func (s *JobService) DeleteJob(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&pipeline.ProgressEntry{}).Error; err != nil {
			return fmt.Errorf("failed to delete progress entries: %v", err)
		}
		result := tx.Delete(&pipeline.Job{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete job: %v", result.Error)
		}
		if result.RowsAffected == 0 {
			return pipeline.ErrJobNotFound
		}
		return nil
	})
}

func (s *JobService) Stats(ctx context.Context) (*pipeline.Stats, error) {
	stats := &pipeline.Stats{}

	counts := []struct {
		dest     *int64
		statuses []pipeline.Status
	}{
		{&stats.Total, nil},
		{&stats.Completed, []pipeline.Status{pipeline.StatusCompleted}},
		{&stats.Failed, []pipeline.Status{pipeline.StatusFailed}},
		{&stats.PendingReview, []pipeline.Status{pipeline.StatusHumanReview, pipeline.StatusOnHold, pipeline.StatusPendingDeploy}},
	}

	for _, c := range counts {
		query := s.db.WithContext(ctx).Model(&pipeline.Job{})
		if c.statuses != nil {
			query = query.Where("status IN ?", c.statuses)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count jobs: %v", err)
		}
	}

	if done := stats.Completed + stats.Failed; done > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(done)
	}
	return stats, nil
}

// updateMap converts a partial update into gorm column assignments.
func updateMap(upd pipeline.JobUpdate) map[string]interface{} {
	changes := map[string]interface{}{}
	if upd.Progress != nil {
		changes["progress"] = *upd.Progress
	}
	if upd.ResearchData != nil {
		changes["research_data"] = *upd.ResearchData
	}
	if upd.DraftContent != nil {
		changes["draft_content"] = *upd.DraftContent
	}
	if upd.ReviewResult != nil {
		changes["review_result"] = *upd.ReviewResult
	}
	if upd.FinalContent != nil {
		changes["final_content"] = *upd.FinalContent
	}
	if upd.Metadata != nil {
		changes["metadata"] = []byte(upd.Metadata)
	}
	if upd.ValidationResult != nil {
		changes["validation_result"] = []byte(upd.ValidationResult)
	}
	if upd.Filepath != nil {
		changes["filepath"] = *upd.Filepath
	}
	if upd.ThumbnailPath != nil {
		changes["thumbnail_path"] = *upd.ThumbnailPath
	}
	if upd.CommitHash != nil {
		changes["commit_hash"] = *upd.CommitHash
	}
	if upd.PRURL != nil {
		changes["pr_url"] = *upd.PRURL
	}
	if upd.HumanApproval != nil {
		changes["human_approval"] = *upd.HumanApproval
	}
	if upd.HumanFeedback != nil {
		changes["human_feedback"] = *upd.HumanFeedback
	}
	if upd.Error != nil {
		changes["error"] = *upd.Error
	}
	return changes
}
