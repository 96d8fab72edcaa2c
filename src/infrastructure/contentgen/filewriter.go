package contentgen

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/fsutil"
)

const frontMatterDelim = "---"

// FileWriter writes finished posts as markdown files with YAML front matter
// under <contentDir>/posts/<category>/<slug>.md.
type FileWriter struct {
	contentDir string
	fs         fsutil.FileStore
}

func NewFileWriter(contentDir string, fs fsutil.FileStore) *FileWriter {
	return &FileWriter{contentDir: contentDir, fs: fs}
}

var _ pipeline.FileCreator = (*FileWriter)(nil)

func (w *FileWriter) CreateFile(ctx context.Context, content string, meta *pipeline.PostMeta) (string, error) {
	if meta == nil || meta.Slug == "" {
		return "", fmt.Errorf("post metadata with a slug is required")
	}

	doc, err := BuildDocument(content, meta)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(w.contentDir, "posts", meta.Category)
	if err := w.fs.MakeDirectory(dir); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path, err := w.availablePath(dir, meta.Slug)
	if err != nil {
		return "", err
	}
	if err := w.fs.WriteFile(path, []byte(doc)); err != nil {
		return "", fmt.Errorf("failed to write post file: %w", err)
	}
	return path, nil
}

// availablePath returns <dir>/<slug>.md, suffixing the filename when another
// post already claimed the slug.
func (w *FileWriter) availablePath(dir, slug string) (string, error) {
	const maxAttempts = 50

	for i := 1; i <= maxAttempts; i++ {
		name := slug + ".md"
		if i > 1 {
			name = fmt.Sprintf("%s-%d.md", slug, i)
		}
		path := filepath.Join(dir, name)
		exists, err := w.fs.Exists(path)
		if err != nil {
			return "", fmt.Errorf("failed to check for existing post: %w", err)
		}
		if !exists {
			return path, nil
		}
	}
	return "", fmt.Errorf("no available filename for slug %q after %d attempts", slug, maxAttempts)
}

// BuildDocument renders a post as YAML front matter followed by the body.
// The body's leading H1 is dropped when it duplicates the front matter title.
func BuildDocument(content string, meta *pipeline.PostMeta) (string, error) {
	fm, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal front matter: %w", err)
	}

	body := strings.TrimSpace(content)
	if title, rest, ok := splitLeadingH1(body); ok && title == meta.Title {
		body = rest
	}

	return frontMatterDelim + "\n" + string(fm) + frontMatterDelim + "\n\n" + body + "\n", nil
}

// ParseDocument splits a post file into front matter and body.
func ParseDocument(doc string) (*pipeline.PostMeta, string, error) {
	content := strings.TrimSpace(doc)
	if !strings.HasPrefix(content, frontMatterDelim) {
		return nil, "", fmt.Errorf("document has no front matter")
	}

	rest := strings.TrimPrefix(content, frontMatterDelim)
	idx := strings.Index(rest, "\n"+frontMatterDelim)
	if idx < 0 {
		return nil, "", fmt.Errorf("front matter is not terminated")
	}

	var meta pipeline.PostMeta
	if err := yaml.Unmarshal([]byte(rest[:idx]), &meta); err != nil {
		return nil, "", fmt.Errorf("failed to parse front matter: %w", err)
	}

	body := strings.TrimPrefix(rest[idx+1+len(frontMatterDelim):], "\n")
	return &meta, strings.TrimSpace(body), nil
}

func splitLeadingH1(body string) (title, rest string, ok bool) {
	if !strings.HasPrefix(body, "# ") {
		return "", "", false
	}
	line, remainder, found := strings.Cut(body, "\n")
	if !found {
		return strings.TrimSpace(strings.TrimPrefix(line, "# ")), "", true
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "# ")), strings.TrimSpace(remainder), true
}
