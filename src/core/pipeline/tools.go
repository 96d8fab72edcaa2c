package pipeline

import (
	"context"
	"time"
)

// PostMeta is the front matter of a generated post.
type PostMeta struct {
	Title       string    `yaml:"title" json:"title"`
	Slug        string    `yaml:"slug" json:"slug"`
	Description string    `yaml:"description" json:"description"`
	Category    string    `yaml:"category" json:"category"`
	Tags        []string  `yaml:"tags,omitempty" json:"tags,omitempty"`
	Thumbnail   string    `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Date        time.Time `yaml:"date" json:"date"`
}

// DraftRequest carries everything the drafting tool needs. Feedback is only
// set on the rewrite loop after a human rejected the draft.
type DraftRequest struct {
	Topic        string
	Category     Category
	Research     string
	Template     string
	Tone         string
	TargetReader string
	Draft        string
	Feedback     string
}

// ValidationResult is the outcome of validating a generated file.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// Thumbnail is a generated thumbnail image and where it was stored.
type Thumbnail struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
	Path     string `json:"path"`
}

// PullRequest is the result of publishing a post to the content repository.
type PullRequest struct {
	CommitHash string `json:"commitHash"`
	URL        string `json:"url"`
}

// Toolchain is the content-generation capability consumed by the executor.
// Each call may fail; a failure surfaces as a step failure.
type Toolchain interface {
	Research(ctx context.Context, topic string, category Category) (string, error)
	Draft(ctx context.Context, req DraftRequest) (string, error)
	Review(ctx context.Context, draft string) (string, error)
	Refine(ctx context.Context, draft, guidance string) (string, error)
	Metadata(ctx context.Context, topic string, category Category, content string) (*PostMeta, error)
}

// Thumbnailer generates and stores a thumbnail image for a post.
type Thumbnailer interface {
	GenerateThumbnail(ctx context.Context, meta *PostMeta, category Category, prompt string) (*Thumbnail, error)
}

// FileCreator writes the final post to a file and returns its path.
type FileCreator interface {
	CreateFile(ctx context.Context, content string, meta *PostMeta) (string, error)
}

// Validator checks a generated post file.
type Validator interface {
	Validate(ctx context.Context, path string) (*ValidationResult, error)
}

// PullRequester publishes the generated file to the content repository.
type PullRequester interface {
	CreatePullRequest(ctx context.Context, path, content string, meta *PostMeta) (*PullRequest, error)
}
