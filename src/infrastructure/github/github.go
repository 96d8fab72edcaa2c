// Package github publishes generated posts to the content repository as
// pull requests through the GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"blogsmith/src/core/pipeline"
)

const DefaultBaseURL = "https://api.github.com"

// Client creates branches, commits and pull requests against one repository.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	owner      string
	repo       string
	baseBranch string
}

type Config struct {
	BaseURL    string
	Token      string
	Owner      string
	Repo       string
	BaseBranch string
}

func NewClient(cfg Config, c *http.Client) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseBranch := cfg.BaseBranch
	if baseBranch == "" {
		baseBranch = "main"
	}
	return &Client{
		httpClient: c,
		baseURL:    baseURL,
		token:      cfg.Token,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		baseBranch: baseBranch,
	}
}

var _ pipeline.PullRequester = (*Client)(nil)

// CreatePullRequest pushes the post file to a fresh branch and opens a pull
// request against the base branch.
func (c *Client) CreatePullRequest(ctx context.Context, filePath, content string, meta *pipeline.PostMeta) (*pipeline.PullRequest, error) {
	baseSHA, err := c.getBranchSHA(ctx, c.baseBranch)
	if err != nil {
		return nil, fmt.Errorf("resolve base branch: %w", err)
	}

	branch := "post/" + meta.Slug
	if err := c.createBranch(ctx, branch, baseSHA); err != nil {
		return nil, fmt.Errorf("create branch %s: %w", branch, err)
	}

	repoPath := path.Join("content", "posts", meta.Category, path.Base(filePath))
	commitSHA, err := c.putFile(ctx, branch, repoPath, content, fmt.Sprintf("post: add %s", meta.Slug))
	if err != nil {
		return nil, fmt.Errorf("commit post file: %w", err)
	}

	prURL, err := c.openPullRequest(ctx, branch, meta)
	if err != nil {
		return nil, fmt.Errorf("open pull request: %w", err)
	}

	return &pipeline.PullRequest{CommitHash: commitSHA, URL: prURL}, nil
}

func (c *Client) getBranchSHA(ctx context.Context, branch string) (string, error) {
	var out struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s/git/ref/heads/%s", c.baseURL, c.owner, c.repo, branch)
	if err := c.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return "", err
	}
	return out.Object.SHA, nil
}

func (c *Client) createBranch(ctx context.Context, branch, sha string) error {
	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": sha,
	}
	url := fmt.Sprintf("%s/repos/%s/%s/git/refs", c.baseURL, c.owner, c.repo)
	return c.do(ctx, http.MethodPost, url, body, nil)
}

func (c *Client) putFile(ctx context.Context, branch, repoPath, content, message string) (string, error) {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branch,
	}
	var out struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, repoPath)
	if err := c.do(ctx, http.MethodPut, url, body, &out); err != nil {
		return "", err
	}
	return out.Commit.SHA, nil
}

func (c *Client) openPullRequest(ctx context.Context, branch string, meta *pipeline.PostMeta) (string, error) {
	body := map[string]string{
		"title": fmt.Sprintf("Add post: %s", meta.Title),
		"head":  branch,
		"base":  c.baseBranch,
		"body":  meta.Description,
	}
	var out struct {
		HTMLURL string `json:"html_url"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s/pulls", c.baseURL, c.owner, c.repo)
	if err := c.do(ctx, http.MethodPost, url, body, &out); err != nil {
		return "", err
	}
	return out.HTMLURL, nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("github API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}
