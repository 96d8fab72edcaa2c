package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/infrastructure/github"
)

func TestCreatePullRequest(t *testing.T) {
	var (
		branchRef string
		putPath   string
		prBody    map[string]string
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/blog/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": map[string]string{"sha": "base-sha"},
		})
	})
	mux.HandleFunc("/repos/acme/blog/git/refs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		branchRef = body["ref"]
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/repos/acme/blog/contents/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		putPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"commit": map[string]string{"sha": "commit-sha"},
		})
	})
	mux.HandleFunc("/repos/acme/blog/pulls", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&prBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"html_url": "https://example.com/acme/blog/pull/12",
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := github.NewClient(github.Config{
		BaseURL: srv.URL,
		Token:   "token",
		Owner:   "acme",
		Repo:    "blog",
	}, srv.Client())

	meta := &pipeline.PostMeta{
		Title:       "Understanding Goroutines",
		Slug:        "understanding-goroutines",
		Description: "desc",
		Category:    "tech",
		Date:        time.Now(),
	}
	pr, err := client.CreatePullRequest(context.Background(), "/content/posts/tech/understanding-goroutines.md", "body", meta)
	if err != nil {
		t.Fatalf("CreatePullRequest() error = %v", err)
	}

	if pr.CommitHash != "commit-sha" {
		t.Errorf("commit = %q, want commit-sha", pr.CommitHash)
	}
	if pr.URL != "https://example.com/acme/blog/pull/12" {
		t.Errorf("url = %q", pr.URL)
	}
	if branchRef != "refs/heads/post/understanding-goroutines" {
		t.Errorf("branch ref = %q", branchRef)
	}
	if want := "/repos/acme/blog/contents/content/posts/tech/understanding-goroutines.md"; putPath != want {
		t.Errorf("contents path = %q, want %q", putPath, want)
	}
	if prBody["base"] != "main" || prBody["head"] != "post/understanding-goroutines" {
		t.Errorf("pull request body = %v", prBody)
	}
}

func TestCreatePullRequestSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := github.NewClient(github.Config{
		BaseURL: srv.URL,
		Owner:   "acme",
		Repo:    "blog",
	}, srv.Client())

	meta := &pipeline.PostMeta{Slug: "x", Category: "tech"}
	if _, err := client.CreatePullRequest(context.Background(), "/x.md", "body", meta); err == nil {
		t.Error("CreatePullRequest() expected error on 401")
	}
}
