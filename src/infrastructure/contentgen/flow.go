// Package contentgen implements the content-generation toolchain on top of
// an LLM provider: research, drafting, review, refinement, metadata and
// topic suggestion.
package contentgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"blogsmith/src/core/pipeline"
)

// DefaultMaxTokenPerChunk bounds how much of a draft is reviewed in one
// model call; longer drafts are split and reviewed per section.
const DefaultMaxTokenPerChunk = 4000

// LLMProvider is the model capability the flow is built on.
type LLMProvider interface {
	TextSplit(ctx context.Context, text string, chunkSize, chunkOverlap int) ([]string, error)
	Reasoning(ctx context.Context, system string, prompt string) (string, error)
	TokenLength(ctx context.Context, text string) (int, error)
}

// promptData holds all the data needed for template execution.
type promptData struct {
	Topic        string
	Category     string
	Research     string
	Template     string
	Tone         string
	TargetReader string
	Draft        string
	Feedback     string
	Review       string
	Chunk        string
	Recent       []string
}

type Flow struct {
	llm              LLMProvider
	maxTokenPerChunk int
}

type Option func(f *Flow)

func WithMaxTokenPerChunk(maxTokenPerChunk int) Option {
	return func(f *Flow) {
		f.maxTokenPerChunk = maxTokenPerChunk
	}
}

func NewFlow(llm LLMProvider, opts ...Option) *Flow {
	f := &Flow{
		llm:              llm,
		maxTokenPerChunk: DefaultMaxTokenPerChunk,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ pipeline.Toolchain = (*Flow)(nil)

func (f *Flow) Research(ctx context.Context, topic string, category pipeline.Category) (string, error) {
	data := promptData{Topic: topic, Category: string(category)}
	return f.reason(ctx, "research", ResearchSystemTmpl, ResearchPromptTmpl, data)
}

func (f *Flow) Draft(ctx context.Context, req pipeline.DraftRequest) (string, error) {
	data := promptData{
		Topic:        req.Topic,
		Category:     string(req.Category),
		Research:     req.Research,
		Template:     req.Template,
		Tone:         req.Tone,
		TargetReader: req.TargetReader,
		Draft:        req.Draft,
		Feedback:     req.Feedback,
	}
	if req.Feedback != "" {
		return f.reason(ctx, "rewrite", DraftSystemTmpl, RewritePromptTmpl, data)
	}
	return f.reason(ctx, "draft", DraftSystemTmpl, DraftPromptTmpl, data)
}

func (f *Flow) Review(ctx context.Context, draft string) (string, error) {
	tokens, err := f.llm.TokenLength(ctx, draft)
	if err != nil {
		return "", fmt.Errorf("failed to get token length: %w", err)
	}

	if tokens <= f.maxTokenPerChunk {
		return f.reason(ctx, "review", ReviewSystemTmpl, ReviewPromptTmpl, promptData{Draft: draft})
	}

	chunks, err := f.llm.TextSplit(ctx, draft, f.maxTokenPerChunk, f.maxTokenPerChunk/10)
	if err != nil {
		return "", fmt.Errorf("failed to split draft: %w", err)
	}

	var sections []string
	for i, chunk := range chunks {
		review, err := f.reason(ctx, "review-chunk", ReviewSystemTmpl, ReviewChunkPromptTmpl, promptData{Chunk: chunk})
		if err != nil {
			return "", fmt.Errorf("failed to review section %d: %w", i+1, err)
		}
		sections = append(sections, review)
	}
	return strings.Join(sections, "\n\n"), nil
}

func (f *Flow) Refine(ctx context.Context, draft, guidance string) (string, error) {
	data := promptData{Draft: draft, Review: guidance}
	return f.reason(ctx, "refine", RefineSystemTmpl, RefinePromptTmpl, data)
}

// metadataReply is the JSON shape the metadata prompt asks for.
type metadataReply struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (f *Flow) Metadata(ctx context.Context, topic string, category pipeline.Category, content string) (*pipeline.PostMeta, error) {
	data := promptData{Topic: topic, Draft: content}
	raw, err := f.reason(ctx, "metadata", MetadataSystemTmpl, MetadataPromptTmpl, data)
	if err != nil {
		return nil, err
	}

	meta := &pipeline.PostMeta{
		Title:    topic,
		Slug:     Slugify(topic),
		Category: string(category),
		Date:     time.Now(),
	}

	var reply metadataReply
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &reply); err == nil {
		if reply.Title != "" {
			meta.Title = reply.Title
		}
		meta.Description = reply.Description
		meta.Tags = reply.Tags
	} else {
		// Model replies are not always valid JSON; fall back to a
		// deterministic description rather than failing the step.
		meta.Description = Excerpt(content, 160)
	}
	return meta, nil
}

func (f *Flow) SuggestTopic(ctx context.Context, category string, recent []string) (string, error) {
	data := promptData{Category: category, Recent: recent}
	topic, err := f.reason(ctx, "suggest-topic", SuggestTopicSystemTmpl, SuggestTopicPromptTmpl, data)
	if err != nil {
		return "", err
	}
	topic = strings.TrimSpace(topic)
	if idx := strings.IndexByte(topic, '\n'); idx >= 0 {
		topic = strings.TrimSpace(topic[:idx])
	}
	if topic == "" {
		return "", fmt.Errorf("model returned an empty topic")
	}
	return topic, nil
}

func (f *Flow) reason(ctx context.Context, name, systemTmpl, promptTmpl string, data promptData) (string, error) {
	system, err := renderPrompt(name+"-system", systemTmpl, data)
	if err != nil {
		return "", err
	}
	prompt, err := renderPrompt(name+"-prompt", promptTmpl, data)
	if err != nil {
		return "", err
	}

	out, err := f.llm.Reasoning(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("%s generation failed: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}

func renderPrompt(name, tmpl string, data promptData) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
