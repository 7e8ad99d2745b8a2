package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog/log"

	"github.com/local/docreader/internal/metrics"
)

const systemPrompt = `You are a reading assistant answering questions about one uploaded PDF document.
Answer only from the numbered page excerpts provided. If the excerpts do not
contain the answer, say so. End your answer with the marker [page: N] where N
is the page number of the excerpt your answer came from.`

// Config holds the OpenAI client settings.
type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Temperature    float32
}

// Client implements Embedder and Answerer against the OpenAI-compatible API.
type Client struct {
	client      *openai.Client
	chatModel   string
	embedModel  openai.EmbeddingModel
	temperature float32
}

// NewClient creates an OpenAI-backed embedding and chat client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		chatModel:   cfg.ChatModel,
		embedModel:  openai.EmbeddingModel(cfg.EmbeddingModel),
		temperature: cfg.Temperature,
	}, nil
}

// Embed implements Embedder for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          c.embedModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		metrics.ObserveEmbedding(string(c.embedModel), "error", time.Since(start))
		return nil, wrapAPIError("embedding request", err)
	}
	if len(resp.Data) != len(texts) {
		metrics.ObserveEmbedding(string(c.embedModel), "error", time.Since(start))
		return nil, fmt.Errorf("embedding response has %d vectors, want %d", len(resp.Data), len(texts))
	}
	metrics.ObserveEmbedding(string(c.embedModel), "success", time.Since(start))

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Answer implements Answerer. The cited page is parsed from the model's
// [page: N] marker, falling back to the top source's page; callers clamp it.
func (c *Client) Answer(ctx context.Context, question string, history []HistoryTurn, sources []Source) (Answer, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	for _, turn := range history {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Answer},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: buildUserPrompt(question, sources),
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		metrics.IncChat(c.chatModel, "error")
		return Answer{}, wrapAPIError("chat request", err)
	}
	if len(resp.Choices) == 0 {
		metrics.IncChat(c.chatModel, "error")
		return Answer{}, errors.New("chat response has no choices")
	}
	metrics.IncChat(c.chatModel, "success")

	raw := resp.Choices[0].Message.Content
	text, page, found := ParseCitation(raw)
	if !found {
		if len(sources) > 0 {
			page = sources[0].Page
		}
		log.Debug().Str("model", c.chatModel).Msg("no citation marker in answer, using top source page")
	}

	return Answer{Text: text, CitedPage: page, Sources: sources}, nil
}

// buildUserPrompt labels each excerpt with its printed (1-based) page number,
// matching the marker format the system prompt asks for.
func buildUserPrompt(question string, sources []Source) string {
	var b strings.Builder
	b.WriteString("PAGE EXCERPTS:\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "[page: %d]\n%s\n\n", s.Page+1, s.Excerpt)
	}
	fmt.Fprintf(&b, "QUESTION: %s", question)
	return b.String()
}

func wrapAPIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return fmt.Errorf("%s: %s: %w", op, apiErr.Message, ErrRateLimited)
		}
		return fmt.Errorf("%s failed with status %d: %s", op, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 {
			return fmt.Errorf("%s: %w", op, ErrRateLimited)
		}
		return fmt.Errorf("%s failed with status %d: %w", op, reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
