package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	httpHdlr "blogsmith/handler/http"
	"blogsmith/src/core/pipeline"
	"blogsmith/src/core/stream"
)

type fakeEnqueuer struct {
	phases []pipeline.Phase
}

func (f *fakeEnqueuer) EnqueuePhase(ctx context.Context, jobID int64, phase pipeline.Phase) error {
	f.phases = append(f.phases, phase)
	return nil
}

func newTestRouter(store pipeline.Store, queue pipeline.Enqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	hub := stream.NewHub()
	gates := pipeline.NewGateController(store, queue, hub)
	handler := httpHdlr.NewHandler(store, gates, queue, hub, nil)

	r := gin.New()
	handler.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateJobAccepted(t *testing.T) {
	store := pipeline.NewMemoryStore()
	queue := &fakeEnqueuer{}
	r := newTestRouter(store, queue)

	w := doJSON(t, r, http.MethodPost, "/api/v1/jobs", `{"topic":"Go testing","category":"tech"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		JobID     int64  `json:"jobId"`
		Status    string `json:"status"`
		StreamURL string `json:"streamUrl"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != "queued" {
		t.Errorf("status = %q, want queued", resp.Status)
	}
	if !strings.Contains(resp.StreamURL, "/events") {
		t.Errorf("streamUrl = %q, want events path", resp.StreamURL)
	}
	if len(queue.phases) != 1 || queue.phases[0] != pipeline.PhaseStart {
		t.Errorf("enqueued = %v, want [start]", queue.phases)
	}
}

func TestCreateJobValidation(t *testing.T) {
	r := newTestRouter(pipeline.NewMemoryStore(), &fakeEnqueuer{})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing topic", body: `{"category":"tech"}`},
		{name: "unknown category", body: `{"topic":"x","category":"gaming"}`},
		{name: "not json", body: `topic=x`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/v1/jobs", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGetJobNotFound(t *testing.T) {
	r := newTestRouter(pipeline.NewMemoryStore(), &fakeEnqueuer{})

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs/99", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var resp struct {
		Code string `json:"code"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", resp.Code)
	}
}

func TestReviewWrongStateConflicts(t *testing.T) {
	store := pipeline.NewMemoryStore()
	r := newTestRouter(store, &fakeEnqueuer{})

	job, err := store.CreateJob(context.Background(), pipeline.CreateJobRequest{Topic: "t", Category: pipeline.CategoryTech})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/jobs/1/review", `{"action":"approve"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Code    string `json:"code"`
		Details struct {
			CurrentStatus string `json:"currentStatus"`
		} `json:"details"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "INVALID_STATE" {
		t.Errorf("code = %q, want INVALID_STATE", resp.Code)
	}
	if resp.Details.CurrentStatus != string(pipeline.StatusQueued) {
		t.Errorf("currentStatus = %q, want queued", resp.Details.CurrentStatus)
	}
	_ = job
}

func TestReviewFlowOverHTTP(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()
	queue := &fakeEnqueuer{}
	r := newTestRouter(store, queue)

	job, _ := store.CreateJob(ctx, pipeline.CreateJobRequest{Topic: "t", Category: pipeline.CategoryTech})
	store.Transition(ctx, job.ID, nil, pipeline.StatusHumanReview, pipeline.JobUpdate{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/jobs/1/review", `{"action":"feedback","feedback":"tighten it up"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != pipeline.StatusWriting {
		t.Errorf("status = %v, want writing", got.Status)
	}
	if len(queue.phases) != 1 || queue.phases[0] != pipeline.PhaseRewrite {
		t.Errorf("enqueued = %v, want [rewrite]", queue.phases)
	}
}

func TestDeployDecisionOverHTTP(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()
	queue := &fakeEnqueuer{}
	r := newTestRouter(store, queue)

	job, _ := store.CreateJob(ctx, pipeline.CreateJobRequest{Topic: "t", Category: pipeline.CategoryTech})
	store.Transition(ctx, job.ID, nil, pipeline.StatusPendingDeploy, pipeline.JobUpdate{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/jobs/1/deploy", `{"action":"skip"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != pipeline.StatusCompleted {
		t.Errorf("status = %v, want completed", got.Status)
	}
	if len(queue.phases) != 0 {
		t.Errorf("enqueued = %v, want none for skip", queue.phases)
	}
}

func TestListJobsPagination(t *testing.T) {
	ctx := context.Background()
	store := pipeline.NewMemoryStore()
	r := newTestRouter(store, &fakeEnqueuer{})

	for i := 0; i < 5; i++ {
		store.CreateJob(ctx, pipeline.CreateJobRequest{Topic: "t", Category: pipeline.CategoryTech})
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs?page=1&limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Jobs       []pipeline.Job `json:"jobs"`
		Total      int64          `json:"total"`
		TotalPages int64          `json:"totalPages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Total != 5 || resp.TotalPages != 3 {
		t.Errorf("total/totalPages = %d/%d, want 5/3", resp.Total, resp.TotalPages)
	}
	if len(resp.Jobs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(resp.Jobs))
	}
}

func TestListJobsEmptyIsArray(t *testing.T) {
	r := newTestRouter(pipeline.NewMemoryStore(), &fakeEnqueuer{})

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"jobs":[]`) {
		t.Errorf("empty listing = %s, want \"jobs\":[]", w.Body.String())
	}
}

func TestInvalidJobIDIsBadRequest(t *testing.T) {
	r := newTestRouter(pipeline.NewMemoryStore(), &fakeEnqueuer{})

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(pipeline.NewMemoryStore(), &fakeEnqueuer{})

	w := doJSON(t, r, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
