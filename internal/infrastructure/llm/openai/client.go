// Package openai adapts an OpenAI-compatible chat API to the embedding,
// classification and generation ports.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
	"github.com/oncare-clinic/rag-chatbot/internal/infrastructure/resilience"
)

type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type Client struct {
	api        *openai.Client
	chatModel  string
	embedModel openai.EmbeddingModel
	exec       *resilience.Executor
}

func New(cfg Config, exec *resilience.Executor) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		api:        openai.NewClientWithConfig(clientCfg),
		chatModel:  cfg.ChatModel,
		embedModel: openai.EmbeddingModel(cfg.EmbedModel),
		exec:       exec,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openai.EmbeddingResponse
	err := e.client.exec.Run(ctx, "llm.embed", transientAPIError, func(ctx context.Context) error {
		r, err := e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:          texts,
			Model:          e.client.embedModel,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed documents", parseAPIError(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed documents",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	// The API may return items out of order; Index restores it.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, domain.WrapError(domain.ErrEmbedding, "embed documents",
				fmt.Errorf("embedding index %d out of range", item.Index))
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}

type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

// Classify routes a query onto the closed category set. Anything the model
// answers outside that set falls through to the general category.
func (c *Classifier) Classify(ctx context.Context, query string) (domain.Category, error) {
	var resp openai.ChatCompletionResponse
	err := c.client.exec.Run(ctx, "llm.classify", transientAPIError, func(ctx context.Context) error {
		r, err := c.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.client.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: classificationPrompt},
				{Role: openai.ChatMessageRoleUser, Content: query},
			},
			MaxTokens:   8,
			Temperature: 0.01,
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return domain.CategoryGeneral, fmt.Errorf("classify query: %w", parseAPIError(err))
	}
	if len(resp.Choices) == 0 {
		return domain.CategoryGeneral, fmt.Errorf("classify query: empty completion")
	}
	return parseCategoryAnswer(resp.Choices[0].Message.Content), nil
}

func parseCategoryAnswer(raw string) domain.Category {
	answer := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(answer, "cancer"):
		return domain.CategoryCancer
	case strings.Contains(answer, "nerve"):
		return domain.CategoryNerve
	default:
		return domain.CategoryGeneral
	}
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// StreamAnswer streams completion deltas to emit. Fallback replies are
// prefixed and closed with the general-information notices so the caller
// can tell them apart from grounded answers.
func (g *Generator) StreamAnswer(ctx context.Context, req domain.GenerationRequest, emit func(chunk string) error) error {
	stream, err := g.client.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       g.client.chatModel,
		Messages:    buildChatMessages(req),
		Temperature: 0.3,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("open answer stream: %w", parseAPIError(err))
	}
	defer stream.Close()

	if req.Fallback {
		if err := emit(domain.FallbackAnswerPrefix); err != nil {
			return err
		}
	}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("receive answer chunk: %w", parseAPIError(err))
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := emit(delta); err != nil {
			return err
		}
	}

	if req.Fallback {
		return emit("\n\n" + domain.FallbackDisclaimer)
	}
	return nil
}
