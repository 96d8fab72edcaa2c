package ollama

import (
	"context"

	"github.com/tmc/langchaingo/textsplitter"
)

// Provider adapts the Ollama client to the content-generation flow's
// LLMProvider contract.
type Provider struct {
	client    *Client
	modelName string
}

func NewProvider(client *Client, modelName string) *Provider {
	return &Provider{
		client:    client,
		modelName: modelName,
	}
}

func (p *Provider) TextSplit(ctx context.Context, text string, chunkSize, chunkOverlap int) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithLenFunc(
			func(s string) int {
				n, err := p.client.CountTokens(ctx, p.modelName, s)
				if err != nil {
					return -1
				}
				return n
			},
		),
	)

	return splitter.SplitText(text)
}

func (p *Provider) Reasoning(ctx context.Context, system string, prompt string) (string, error) {
	return p.client.Generate(ctx, p.modelName, system, prompt, map[string]interface{}{
		"temperature": 0.7,
		"top_p":       0.9,
	})
}

func (p *Provider) TokenLength(ctx context.Context, text string) (int, error) {
	return p.client.CountTokens(ctx, p.modelName, text)
}
