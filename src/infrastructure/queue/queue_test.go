package queue_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/infrastructure/queue"
)

// fakePublisher records published messages per topic.
type fakePublisher struct {
	published map[string][]*message.Message
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string][]*message.Message)}
}

func (f *fakePublisher) Publish(topic string, messages ...*message.Message) error {
	f.published[topic] = append(f.published[topic], messages...)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func TestEnqueuePhasePublishesTask(t *testing.T) {
	publisher := newFakePublisher()
	svc := queue.NewService(publisher, watermill.NopLogger{})

	if err := svc.EnqueuePhase(context.Background(), 7, pipeline.PhaseFinalize); err != nil {
		t.Fatalf("EnqueuePhase() error = %v", err)
	}

	msgs := publisher.published[queue.TasksTopic]
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}

	var task queue.TaskMessage
	if err := json.Unmarshal(msgs[0].Payload, &task); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if task.JobID != 7 || task.Phase != pipeline.PhaseFinalize {
		t.Errorf("task = %+v, want job 7 finalize", task)
	}
}

func TestEventPublisherForwardsEvents(t *testing.T) {
	publisher := newFakePublisher()
	events := queue.NewEventPublisher(publisher, watermill.NopLogger{})

	events.Notify(context.Background(), pipeline.Event{
		JobID:     3,
		Kind:      pipeline.EventReviewRequired,
		JobStatus: pipeline.StatusHumanReview,
	})

	msgs := publisher.published[queue.EventsTopic]
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}

	var ev pipeline.Event
	if err := json.Unmarshal(msgs[0].Payload, &ev); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if ev.JobID != 3 || ev.Kind != pipeline.EventReviewRequired {
		t.Errorf("event = %+v, want review-required for job 3", ev)
	}
}

func TestEventBridgeDecodesToSink(t *testing.T) {
	var got []pipeline.Event
	bridge := queue.NewEventBridge(notifierFunc(func(ev pipeline.Event) {
		got = append(got, ev)
	}))

	payload, _ := json.Marshal(pipeline.Event{JobID: 9, Kind: pipeline.EventComplete})
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := bridge.HandleMessage(msg); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(got) != 1 || got[0].JobID != 9 {
		t.Errorf("sink received %v, want job 9 event", got)
	}

	bad := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	if err := bridge.HandleMessage(bad); err == nil {
		t.Error("HandleMessage() with bad payload expected error")
	}
}

func TestWorkerAcksStaleTask(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()
	job, err := store.CreateJob(ctx, pipeline.CreateJobRequest{Topic: "t", Category: pipeline.CategoryTech})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.Transition(ctx, job.ID, nil, pipeline.StatusHumanReview, pipeline.JobUpdate{}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	executor := pipeline.NewExecutor(pipeline.ExecutorConfig{Store: store})
	worker := queue.NewWorker(executor, watermill.NopLogger{})

	payload, _ := json.Marshal(queue.TaskMessage{JobID: job.ID, Phase: pipeline.PhaseStart})
	msg := message.NewMessage(watermill.NewUUID(), payload)

	// A task whose job already moved on must be acked, not retried.
	if err := worker.ProcessTask(msg); err != nil {
		t.Errorf("ProcessTask() error = %v, want nil for stale task", err)
	}

	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != pipeline.StatusHumanReview {
		t.Errorf("status = %v, want untouched %v", got.Status, pipeline.StatusHumanReview)
	}
}

func TestWorkerRejectsMalformedTask(t *testing.T) {
	executor := pipeline.NewExecutor(pipeline.ExecutorConfig{Store: pipeline.NewMemoryStore()})
	worker := queue.NewWorker(executor, watermill.NopLogger{})

	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	if err := worker.ProcessTask(msg); err == nil {
		t.Error("ProcessTask() with malformed payload expected error")
	}
}

// notifierFunc adapts a function to pipeline.Notifier.
type notifierFunc func(ev pipeline.Event)

func (f notifierFunc) Notify(_ context.Context, ev pipeline.Event) { f(ev) }
