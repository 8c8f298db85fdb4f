// Package summarize produces short bullet summaries for ranked articles. A
// chain of summarizers is tried in order; a provider that has burned its
// quota yields to the next link, anything else aborts so callers can decide
// whether a summary is worth retrying.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"horse.fit/newsdesk/internal/news"
)

// ErrQuotaExceeded signals that a summarizer ran out of budget for the
// current period. The chain skips to the next link on this error only.
var ErrQuotaExceeded = errors.New("summarize: quota exceeded")

// Summarizer turns one article into a handful of bullet points.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, a news.Article) ([]string, error)
}

// Chain tries each summarizer in order. ErrQuotaExceeded moves on to the
// next link; any other error aborts the chain.
type Chain struct {
	links []Summarizer
}

func NewChain(links ...Summarizer) *Chain {
	return &Chain{links: links}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Summarize(ctx context.Context, a news.Article) ([]string, error) {
	if len(c.links) == 0 {
		return nil, errors.New("summarize: empty chain")
	}
	for _, link := range c.links {
		bullets, err := link.Summarize(ctx, a)
		if err == nil {
			return bullets, nil
		}
		if errors.Is(err, ErrQuotaExceeded) {
			continue
		}
		return nil, fmt.Errorf("summarize: %s: %w", link.Name(), err)
	}
	return nil, ErrQuotaExceeded
}

const (
	extractiveMaxBullets   = 3
	extractiveMinSentence  = 30
	extractiveMaxSentence  = 280
	extractiveMinAlphaFrac = 0.6
)

// Extractive is the terminal fallback: it never calls out and never runs out
// of quota, it just lifts the leading substantive sentences from the article
// body.
type Extractive struct{}

func (Extractive) Name() string { return "extractive" }

func (Extractive) Summarize(_ context.Context, a news.Article) ([]string, error) {
	text := a.Content
	if strings.TrimSpace(text) == "" {
		text = a.Description
	}
	bullets := leadingSentences(text, extractiveMaxBullets)
	if len(bullets) == 0 {
		return nil, errors.New("summarize: no usable sentences")
	}
	return bullets, nil
}

func leadingSentences(text string, limit int) []string {
	var out []string
	for _, raw := range splitSentences(text) {
		if len(out) >= limit {
			break
		}
		s := strings.TrimSpace(raw)
		if len(s) < extractiveMinSentence || len(s) > extractiveMaxSentence {
			continue
		}
		if alphaFraction(s) < extractiveMinAlphaFrac {
			continue
		}
		out = append(out, s)
	}
	return out
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

func alphaFraction(s string) float64 {
	if s == "" {
		return 0
	}
	letters := 0
	total := 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			letters++
		}
	}
	return float64(letters) / float64(total)
}
