package ai

import (
	"context"
	"errors"
)

// HistoryTurn is one completed question/answer exchange in a session.
type HistoryTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Source is a retrieved excerpt with the zero-based page it came from.
type Source struct {
	Page    int    `json:"page"`
	Excerpt string `json:"excerpt"`
}

// Answer is the answer service output. CitedPage is heuristic and must be
// treated as untrusted by callers.
type Answer struct {
	Text      string   `json:"text"`
	CitedPage int      `json:"cited_page"`
	Sources   []Source `json:"sources"`
}

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Answerer answers a question over retrieved sources with chat history.
type Answerer interface {
	Answer(ctx context.Context, question string, history []HistoryTurn, sources []Source) (Answer, error)
}

var ErrRateLimited = errors.New("rate_limited")

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
