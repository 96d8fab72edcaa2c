package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for local runs and tests. It mirrors the
// Postgres-backed store's semantics, including guarded transitions.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	jobs    map[int64]*Job
	entries map[int64][]ProgressEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		jobs:    make(map[int64]*Job),
		entries: make(map[int64][]ProgressEntry),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	job := &Job{
		ID:           s.nextID,
		Topic:        req.Topic,
		Category:     req.Category,
		Template:     req.Template,
		Tone:         req.Tone,
		TargetReader: req.TargetReader,
		AutoApprove:  req.AutoApprove,
		Status:       StatusQueued,
		CurrentStep:  StepLabel(StatusQueued),
		Progress:     0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.nextID++
	s.jobs[job.ID] = job

	out := *job
	return &out, nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id int64) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	out := *job
	return &out, nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, id int64, upd JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	applyUpdate(job, upd)
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Transition(ctx context.Context, id int64, from []Status, to Status, upd JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	allowed := false
	if len(from) == 0 {
		allowed = !job.Status.Terminal()
	} else {
		for _, f := range from {
			if job.Status == f {
				allowed = true
				break
			}
		}
	}
	if !allowed {
		return &InvalidStateError{JobID: id, Current: job.Status, Wanted: from}
	}

	applyUpdate(job, upd)
	job.Status = to
	if to != StatusFailed {
		job.CurrentStep = StepLabel(to)
		if p, ok := ProgressFor(to); ok && upd.Progress == nil {
			job.Progress = p
		}
	}
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AppendProgress(ctx context.Context, entry *ProgressEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[entry.JobID]; !ok {
		return ErrJobNotFound
	}
	entry.ID = s.nextID
	s.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries[entry.JobID] = append(s.entries[entry.JobID], *entry)
	return nil
}

func (s *MemoryStore) ListProgress(ctx context.Context, jobID int64) ([]ProgressEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return nil, ErrJobNotFound
	}
	out := make([]ProgressEntry, len(s.entries[jobID]))
	copy(out, s.entries[jobID])
	return out, nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, f JobFilter) ([]Job, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Job
	for _, job := range s.jobs {
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		if f.Category != "" && job.Category != f.Category {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(job.Topic), strings.ToLower(f.Search)) {
			continue
		}
		matched = append(matched, *job)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []Job{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) DeleteJob(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(s.jobs, id)
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{}
	for _, job := range s.jobs {
		stats.Total++
		switch job.Status {
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusHumanReview, StatusOnHold, StatusPendingDeploy:
			stats.PendingReview++
		}
	}
	if done := stats.Completed + stats.Failed; done > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(done)
	}
	return stats, nil
}

// applyUpdate merges non-nil fields of upd into job.
func applyUpdate(job *Job, upd JobUpdate) {
	if upd.Progress != nil {
		job.Progress = *upd.Progress
	}
	if upd.ResearchData != nil {
		job.ResearchData = *upd.ResearchData
	}
	if upd.DraftContent != nil {
		job.DraftContent = *upd.DraftContent
	}
	if upd.ReviewResult != nil {
		job.ReviewResult = *upd.ReviewResult
	}
	if upd.FinalContent != nil {
		job.FinalContent = *upd.FinalContent
	}
	if upd.Metadata != nil {
		job.Metadata = upd.Metadata
	}
	if upd.ValidationResult != nil {
		job.ValidationResult = upd.ValidationResult
	}
	if upd.Filepath != nil {
		job.Filepath = *upd.Filepath
	}
	if upd.ThumbnailPath != nil {
		job.ThumbnailPath = *upd.ThumbnailPath
	}
	if upd.CommitHash != nil {
		job.CommitHash = *upd.CommitHash
	}
	if upd.PRURL != nil {
		job.PRURL = *upd.PRURL
	}
	if upd.HumanApproval != nil {
		v := *upd.HumanApproval
		job.HumanApproval = &v
	}
	if upd.HumanFeedback != nil {
		job.HumanFeedback = *upd.HumanFeedback
	}
	if upd.Error != nil {
		job.Error = upd.Error
	}
}
