package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	httpHdlr "blogsmith/handler/http"
	"blogsmith/src/core/pipeline"
	"blogsmith/src/core/stream"
)

// sseRecorder adds the CloseNotify gin's streaming writer asserts for.
type sseRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newSSERecorder() *sseRecorder {
	return &sseRecorder{
		ResponseRecorder: httptest.NewRecorder(),
		closed:           make(chan bool),
	}
}

func (r *sseRecorder) CloseNotify() <-chan bool { return r.closed }

// transitioningStore publishes an event to the hub while the snapshot read is
// in flight, reproducing a worker finishing the job at that exact moment.
type transitioningStore struct {
	pipeline.Store
	hub   *stream.Hub
	event pipeline.Event
	once  bool
}

func (s *transitioningStore) GetJob(ctx context.Context, id int64) (*pipeline.Job, error) {
	if !s.once {
		s.once = true
		s.hub.Publish(s.event)
	}
	return s.Store.GetJob(ctx, id)
}

func TestStreamEventsCatchesTransitionDuringSnapshot(t *testing.T) {
	ctx := context.Background()
	mem := pipeline.NewMemoryStore()
	job, err := mem.CreateJob(ctx, pipeline.CreateJobRequest{Topic: "t", Category: pipeline.CategoryTech})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := mem.Transition(ctx, job.ID, nil, pipeline.StatusDeploying, pipeline.JobUpdate{}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	hub := stream.NewHub()
	store := &transitioningStore{
		Store: mem,
		hub:   hub,
		event: pipeline.Event{
			JobID:     job.ID,
			Kind:      pipeline.EventComplete,
			JobStatus: pipeline.StatusCompleted,
		},
	}

	gin.SetMode(gin.TestMode)
	gates := pipeline.NewGateController(store, &fakeEnqueuer{}, hub)
	handler := httpHdlr.NewHandler(store, gates, &fakeEnqueuer{}, hub, nil)
	r := gin.New()
	handler.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/1/events", nil)
	w := newSSERecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not terminate after the terminal event")
	}

	body := w.Body.String()
	if !strings.Contains(body, "event:progress") {
		t.Errorf("body missing snapshot event:\n%s", body)
	}
	if !strings.Contains(body, "event:complete") {
		t.Errorf("body missing terminal event published during snapshot read:\n%s", body)
	}
}
