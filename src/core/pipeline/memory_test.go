package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"blogsmith/src/core/pipeline"
)

func TestMemoryStoreTransitionGuard(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()
	job := createJob(t, store, false)

	tests := []struct {
		name    string
		from    []pipeline.Status
		to      pipeline.Status
		wantErr bool
	}{
		{name: "matching from", from: []pipeline.Status{pipeline.StatusQueued}, to: pipeline.StatusResearch},
		{name: "one of several", from: []pipeline.Status{pipeline.StatusQueued, pipeline.StatusResearch}, to: pipeline.StatusWriting},
		{name: "mismatched from", from: []pipeline.Status{pipeline.StatusQueued}, to: pipeline.StatusReview, wantErr: true},
		{name: "empty from means any non-terminal", from: nil, to: pipeline.StatusFailed},
		{name: "terminal rejects all", from: nil, to: pipeline.StatusQueued, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Transition(ctx, job.ID, tt.from, tt.to, pipeline.JobUpdate{})
			if (err != nil) != tt.wantErr {
				t.Errorf("Transition() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !pipeline.IsInvalidState(err) {
				t.Errorf("Transition() error = %v, want InvalidStateError", err)
			}
		})
	}
}

func TestMemoryStoreTransitionDerivesStepAndProgress(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()
	job := createJob(t, store, false)

	if err := store.Transition(ctx, job.ID, nil, pipeline.StatusPendingDeploy, pipeline.JobUpdate{}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	got, _ := store.GetJob(ctx, job.ID)
	if got.CurrentStep != "deploy" {
		t.Errorf("current step = %q, want deploy", got.CurrentStep)
	}
	if got.Progress != 90 {
		t.Errorf("progress = %d, want 90", got.Progress)
	}

	// Failing keeps the progress the job had reached.
	if err := store.Transition(ctx, job.ID, nil, pipeline.StatusFailed, pipeline.JobUpdate{}); err != nil {
		t.Fatalf("Transition(failed) error = %v", err)
	}
	got, _ = store.GetJob(ctx, job.ID)
	if got.Progress != 90 {
		t.Errorf("progress after failure = %d, want 90", got.Progress)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()

	if _, err := store.GetJob(ctx, 42); !errors.Is(err, pipeline.ErrJobNotFound) {
		t.Errorf("GetJob() error = %v, want ErrJobNotFound", err)
	}
	if err := store.UpdateJob(ctx, 42, pipeline.JobUpdate{}); !errors.Is(err, pipeline.ErrJobNotFound) {
		t.Errorf("UpdateJob() error = %v, want ErrJobNotFound", err)
	}
	if err := store.DeleteJob(ctx, 42); !errors.Is(err, pipeline.ErrJobNotFound) {
		t.Errorf("DeleteJob() error = %v, want ErrJobNotFound", err)
	}
	if err := store.AppendProgress(ctx, &pipeline.ProgressEntry{JobID: 42}); !errors.Is(err, pipeline.ErrJobNotFound) {
		t.Errorf("AppendProgress() error = %v, want ErrJobNotFound", err)
	}
}

func TestMemoryStoreListJobs(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()

	topics := []string{"Go generics", "Go routines", "Sourdough baking"}
	categories := []pipeline.Category{pipeline.CategoryTech, pipeline.CategoryTech, pipeline.CategoryLife}
	for i := range topics {
		if _, err := store.CreateJob(ctx, pipeline.CreateJobRequest{Topic: topics[i], Category: categories[i]}); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    pipeline.JobFilter
		wantTotal int64
		wantLen   int
	}{
		{name: "all", filter: pipeline.JobFilter{}, wantTotal: 3, wantLen: 3},
		{name: "by category", filter: pipeline.JobFilter{Category: pipeline.CategoryLife}, wantTotal: 1, wantLen: 1},
		{name: "by search", filter: pipeline.JobFilter{Search: "go"}, wantTotal: 2, wantLen: 2},
		{name: "by status", filter: pipeline.JobFilter{Status: pipeline.StatusQueued}, wantTotal: 3, wantLen: 3},
		{name: "paged", filter: pipeline.JobFilter{Page: 2, Limit: 2}, wantTotal: 3, wantLen: 1},
		{name: "past the end", filter: pipeline.JobFilter{Page: 5, Limit: 2}, wantTotal: 3, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, total, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(jobs) != tt.wantLen {
				t.Errorf("len(jobs) = %d, want %d", len(jobs), tt.wantLen)
			}
		})
	}
}

func TestMemoryStoreProgressOrdering(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()
	job := createJob(t, store, false)

	steps := []string{"research", "writing", "review"}
	for _, step := range steps {
		if err := store.AppendProgress(ctx, &pipeline.ProgressEntry{JobID: job.ID, Step: step, Status: pipeline.EntryStarted}); err != nil {
			t.Fatalf("AppendProgress(%s) error = %v", step, err)
		}
	}

	entries, err := store.ListProgress(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListProgress() error = %v", err)
	}
	if len(entries) != len(steps) {
		t.Fatalf("len(entries) = %d, want %d", len(entries), len(steps))
	}
	for i, e := range entries {
		if e.Step != steps[i] {
			t.Errorf("entries[%d].Step = %q, want %q", i, e.Step, steps[i])
		}
		if i > 0 && entries[i].ID <= entries[i-1].ID {
			t.Errorf("entry IDs not strictly increasing: %d then %d", entries[i-1].ID, entries[i].ID)
		}
	}
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()

	statuses := []pipeline.Status{
		pipeline.StatusCompleted,
		pipeline.StatusCompleted,
		pipeline.StatusFailed,
		pipeline.StatusHumanReview,
		pipeline.StatusPendingDeploy,
		pipeline.StatusWriting,
	}
	for _, status := range statuses {
		job := createJob(t, store, false)
		if err := store.Transition(ctx, job.ID, nil, status, pipeline.JobUpdate{}); err != nil {
			t.Fatalf("Transition(%v) error = %v", status, err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 6 {
		t.Errorf("total = %d, want 6", stats.Total)
	}
	if stats.Completed != 2 || stats.Failed != 1 {
		t.Errorf("completed/failed = %d/%d, want 2/1", stats.Completed, stats.Failed)
	}
	if stats.PendingReview != 2 {
		t.Errorf("pending review = %d, want 2", stats.PendingReview)
	}
	if want := 2.0 / 3.0; stats.SuccessRate != want {
		t.Errorf("success rate = %v, want %v", stats.SuccessRate, want)
	}
}
