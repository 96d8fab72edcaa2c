package scheduler

import (
	"context"
	"testing"
	"time"

	"blogsmith/src/storage/postgres/schedulectrl"
)

type fakeSource struct {
	schedules []schedulectrl.Schedule
}

func (f *fakeSource) ListEnabled(ctx context.Context) ([]schedulectrl.Schedule, error) {
	out := make([]schedulectrl.Schedule, len(f.schedules))
	copy(out, f.schedules)
	return out, nil
}

func (f *fakeSource) GetByID(ctx context.Context, id int64) (*schedulectrl.Schedule, error) {
	for i := range f.schedules {
		if f.schedules[i].ID == id {
			return &f.schedules[i], nil
		}
	}
	return nil, schedulectrl.ErrScheduleNotFound
}

func (f *fakeSource) MarkRun(ctx context.Context, id int64, ranAt time.Time) error {
	return nil
}

func TestSyncRegistersAndRemoves(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{schedules: []schedulectrl.Schedule{
		{ID: 1, Name: "daily", CronExpr: "0 9 * * *"},
		{ID: 2, Name: "weekly", CronExpr: "0 9 * * 1"},
	}}
	trig := NewTrigger(src, nil, nil, nil)

	if err := trig.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(trig.entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(trig.entries))
	}

	src.schedules = src.schedules[:1]
	if err := trig.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(trig.entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(trig.entries))
	}
	if _, ok := trig.entries[1]; !ok {
		t.Errorf("entries missing schedule 1 after removal of schedule 2")
	}
}

func TestSyncReregistersEditedSchedule(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{schedules: []schedulectrl.Schedule{
		{ID: 1, Name: "daily", CronExpr: "0 9 * * *"},
	}}
	trig := NewTrigger(src, nil, nil, nil)

	if err := trig.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	first := trig.entries[1]

	// Unchanged schedule keeps its entry.
	if err := trig.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if trig.entries[1].id != first.id {
		t.Errorf("entry id changed without an edit: %v != %v", trig.entries[1].id, first.id)
	}

	// An edited cron expression takes effect on the next sync.
	src.schedules[0].CronExpr = "0 18 * * *"
	if err := trig.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	edited := trig.entries[1]
	if edited.id == first.id {
		t.Errorf("entry id unchanged after cron edit")
	}
	if edited.spec != "0 18 * * *" {
		t.Errorf("spec = %q, want %q", edited.spec, "0 18 * * *")
	}

	// A timezone edit changes the registered spec too.
	src.schedules[0].Timezone = "Asia/Taipei"
	if err := trig.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if trig.entries[1].spec != "CRON_TZ=Asia/Taipei 0 18 * * *" {
		t.Errorf("spec = %q, want timezone-prefixed spec", trig.entries[1].spec)
	}
}

func TestSyncSkipsInvalidCronExpression(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{schedules: []schedulectrl.Schedule{
		{ID: 1, Name: "good", CronExpr: "0 9 * * *"},
		{ID: 2, Name: "bad", CronExpr: "not a cron expr"},
	}}
	trig := NewTrigger(src, nil, nil, nil)

	if err := trig.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(trig.entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(trig.entries))
	}
	if _, ok := trig.entries[2]; ok {
		t.Errorf("invalid schedule was registered")
	}
}
