// Package topics picks the next post topic for a schedule from its
// configured source: a manual rotation list, an RSS feed, or an AI
// suggestion.
package topics

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Topic sources.
const (
	SourceManual = "manual"
	SourceRSS    = "rss"
	SourceAI     = "ai"
)

// Request describes a schedule's topic configuration at pick time.
type Request struct {
	Source    string
	Topics    []string
	NextIndex int
	FeedURL   string
	Category  string
}

// Suggester proposes a topic when the schedule uses the AI source. Recent
// topics are passed so suggestions do not repeat them.
type Suggester interface {
	SuggestTopic(ctx context.Context, category string, recent []string) (string, error)
}

// Picker resolves the next topic for a schedule.
type Picker struct {
	parser    *gofeed.Parser
	suggester Suggester
}

func NewPicker(suggester Suggester) *Picker {
	return &Picker{
		parser:    gofeed.NewParser(),
		suggester: suggester,
	}
}

// Pick returns the next topic for the given configuration.
func (p *Picker) Pick(ctx context.Context, req Request) (string, error) {
	switch req.Source {
	case SourceManual:
		if len(req.Topics) == 0 {
			return "", fmt.Errorf("manual topic source has an empty topic list")
		}
		return req.Topics[req.NextIndex%len(req.Topics)], nil

	case SourceRSS:
		if req.FeedURL == "" {
			return "", fmt.Errorf("rss topic source has no feed url")
		}
		feed, err := p.parser.ParseURLWithContext(req.FeedURL, ctx)
		if err != nil {
			return "", fmt.Errorf("parse feed %s: %w", req.FeedURL, err)
		}
		if len(feed.Items) == 0 {
			return "", fmt.Errorf("feed %s has no items", req.FeedURL)
		}
		title := strings.TrimSpace(feed.Items[0].Title)
		if title == "" {
			return "", fmt.Errorf("feed %s latest item has no title", req.FeedURL)
		}
		return title, nil

	case SourceAI:
		if p.suggester == nil {
			return "", fmt.Errorf("ai topic source requires a suggester")
		}
		return p.suggester.SuggestTopic(ctx, req.Category, req.Topics)

	default:
		return "", fmt.Errorf("unknown topic source %q", req.Source)
	}
}
