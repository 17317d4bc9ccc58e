package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultJudgeModel  = "gemini-2.5-pro"
	defaultTriageModel = "gemini-2.5-flash"
	defaultEmbedModel  = "text-embedding-004"

	// Embedding input above this is truncated to stay under token limits.
	maxEmbedChars = 40000
)

// Client wraps the Google GenAI client. One client serves all provider
// roles; Model and Embedder bind it to a concrete model name.
type Client struct {
	client *genai.Client
}

// NewClient creates a client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{client: client}, nil
}

// Model binds the client to a generation model, implementing
// ai.CompletionModel.
type Model struct {
	client      *genai.Client
	name        string
	temperature float32
}

// Model returns a completion model for the given model name. An empty name
// selects the default judge model.
func (c *Client) Model(name string, temperature float32) *Model {
	if name = strings.TrimSpace(name); name == "" {
		name = defaultJudgeModel
	}
	return &Model{client: c.client, name: name, temperature: temperature}
}

func (m *Model) Name() string { return m.name }

// Complete sends the prompt and returns the concatenated textual response.
func (m *Model) Complete(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	temp := m.temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: 4096,
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.name, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// Embedder binds the client to an embedding model, implementing
// ai.EmbeddingModel.
type Embedder struct {
	client *genai.Client
	model  string
}

// Embedder returns an embedding model. An empty name selects the default.
func (c *Client) Embedder(model string) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbedModel
	}
	return &Embedder{client: c.client, model: model}
}

// Embed computes a dense embedding for the text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 {
		return nil, errors.New("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}
