// Package scheduler fires blog post jobs from stored cron schedules.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/core/topics"
	"blogsmith/src/log"
	"blogsmith/src/storage/postgres/schedulectrl"
)

// DefaultSyncInterval is how often stored schedules are reloaded.
const DefaultSyncInterval = time.Minute

// ScheduleSource is the schedule persistence the trigger runs against.
type ScheduleSource interface {
	ListEnabled(ctx context.Context) ([]schedulectrl.Schedule, error)
	GetByID(ctx context.Context, id int64) (*schedulectrl.Schedule, error)
	MarkRun(ctx context.Context, id int64, ranAt time.Time) error
}

// cronEntry records what was registered for a schedule so an edited cron
// expression or timezone is picked up on the next sync.
type cronEntry struct {
	id   cron.EntryID
	spec string
}

// Trigger keeps a cron runner in sync with the enabled schedules in the
// database and creates a job each time one fires.
type Trigger struct {
	schedules ScheduleSource
	store     pipeline.Store
	picker    *topics.Picker
	queue     pipeline.Enqueuer

	syncInterval time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[int64]cronEntry
}

func NewTrigger(
	schedules ScheduleSource,
	store pipeline.Store,
	picker *topics.Picker,
	queue pipeline.Enqueuer,
) *Trigger {
	return &Trigger{
		schedules:    schedules,
		store:        store,
		picker:       picker,
		queue:        queue,
		syncInterval: DefaultSyncInterval,
		cron:         cron.New(),
		entries:      make(map[int64]cronEntry),
	}
}

// Run starts the cron runner and keeps it synced until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context) error {
	if err := t.Sync(ctx); err != nil {
		return fmt.Errorf("initial schedule sync: %w", err)
	}
	t.cron.Start()
	defer t.cron.Stop()

	ticker := time.NewTicker(t.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Sync(ctx); err != nil {
				log.Error(err, "schedule sync failed")
			}
		}
	}
}

// Sync reconciles the cron entries with the enabled schedules. Removed or
// edited schedules are re-registered, and a schedule with a cron expression
// that no longer parses is skipped rather than aborting the sync.
func (t *Trigger) Sync(ctx context.Context) error {
	enabled, err := t.schedules.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled schedules: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[int64]bool, len(enabled))
	for _, sched := range enabled {
		seen[sched.ID] = true
		spec := cronSpec(&sched)
		if existing, ok := t.entries[sched.ID]; ok {
			if existing.spec == spec {
				continue
			}
			t.cron.Remove(existing.id)
			delete(t.entries, sched.ID)
		}

		sched := sched
		entryID, err := t.cron.AddFunc(spec, func() {
			t.fire(context.Background(), sched.ID)
		})
		if err != nil {
			log.Error(err, "invalid cron expression, schedule skipped",
				"schedule", sched.ID, "name", sched.Name, "expr", sched.CronExpr)
			continue
		}
		t.entries[sched.ID] = cronEntry{id: entryID, spec: spec}
		log.Info("schedule registered", "schedule", sched.ID, "name", sched.Name, "expr", sched.CronExpr)
	}

	for id, entry := range t.entries {
		if !seen[id] {
			t.cron.Remove(entry.id)
			delete(t.entries, id)
			log.Info("schedule removed", "schedule", id)
		}
	}
	return nil
}

// fire creates and enqueues one auto-approved job for the schedule. The
// schedule is re-read so the topic rotation index reflects earlier firings.
func (t *Trigger) fire(ctx context.Context, scheduleID int64) {
	sched, err := t.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		log.Error(err, "schedule vanished before firing", "schedule", scheduleID)
		return
	}

	topic, err := t.picker.Pick(ctx, topics.Request{
		Source:    sched.TopicSource,
		Topics:    sched.TopicList(),
		NextIndex: sched.NextIndex,
		FeedURL:   sched.FeedURL,
		Category:  string(sched.Category),
	})
	if err != nil {
		log.Error(err, "topic selection failed", "schedule", sched.ID)
		return
	}

	job, err := t.store.CreateJob(ctx, pipeline.CreateJobRequest{
		Topic:       topic,
		Category:    sched.Category,
		Template:    sched.Template,
		AutoApprove: sched.AutoApprove,
	})
	if err != nil {
		log.Error(err, "scheduled job creation failed", "schedule", sched.ID)
		return
	}

	data, _ := json.Marshal(map[string]interface{}{
		"schedule_id":   sched.ID,
		"schedule_name": sched.Name,
		"topic_source":  sched.TopicSource,
	})
	if err := t.store.AppendProgress(ctx, &pipeline.ProgressEntry{
		JobID:   job.ID,
		Step:    "schedule",
		Status:  pipeline.EntryCompleted,
		Message: fmt.Sprintf("triggered by schedule %q", sched.Name),
		Data:    data,
	}); err != nil {
		log.Error(err, "failed to record schedule trigger", "job", job.ID)
	}

	if err := t.queue.EnqueuePhase(ctx, job.ID, pipeline.PhaseStart); err != nil {
		log.Error(err, "failed to enqueue scheduled job", "job", job.ID)
		return
	}

	if err := t.schedules.MarkRun(ctx, sched.ID, time.Now()); err != nil {
		log.Error(err, "failed to mark schedule run", "schedule", sched.ID)
	}

	log.Info("scheduled job enqueued", "schedule", sched.ID, "job", job.ID, "topic", topic)
}

// cronSpec prefixes the expression with the schedule's timezone so the cron
// runner evaluates it in that zone rather than the process local time.
func cronSpec(sched *schedulectrl.Schedule) string {
	if sched.Timezone == "" {
		return sched.CronExpr
	}
	return fmt.Sprintf("CRON_TZ=%s %s", sched.Timezone, sched.CronExpr)
}
