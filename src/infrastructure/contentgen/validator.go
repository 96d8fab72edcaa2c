package contentgen

import (
	"context"
	"fmt"
	"strings"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/fsutil"
)

// minBodyLength is the shortest body (in runes) accepted for a post.
const minBodyLength = 300

// FileValidator checks a generated post file: parseable front matter with
// the required fields, and a body of publishable shape.
type FileValidator struct {
	fs fsutil.FileStore
}

func NewFileValidator(fs fsutil.FileStore) *FileValidator {
	return &FileValidator{fs: fs}
}

var _ pipeline.Validator = (*FileValidator)(nil)

func (v *FileValidator) Validate(ctx context.Context, path string) (*pipeline.ValidationResult, error) {
	data, err := v.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read post file: %w", err)
	}

	result := &pipeline.ValidationResult{Valid: true}
	addProblem := func(format string, args ...interface{}) {
		result.Valid = false
		result.Problems = append(result.Problems, fmt.Sprintf(format, args...))
	}

	meta, body, err := ParseDocument(string(data))
	if err != nil {
		addProblem("front matter: %v", err)
		return result, nil
	}

	if strings.TrimSpace(meta.Title) == "" {
		addProblem("front matter is missing a title")
	}
	if strings.TrimSpace(meta.Slug) == "" {
		addProblem("front matter is missing a slug")
	}
	if strings.TrimSpace(meta.Description) == "" {
		addProblem("front matter is missing a description")
	}
	if !pipeline.Category(meta.Category).Valid() {
		addProblem("front matter category %q is not a known category", meta.Category)
	}
	if meta.Date.IsZero() {
		addProblem("front matter is missing a date")
	}

	if n := len([]rune(body)); n < minBodyLength {
		addProblem("body is too short: %d characters", n)
	}
	if !strings.Contains(body, "## ") {
		addProblem("body has no section headings")
	}

	return result, nil
}
