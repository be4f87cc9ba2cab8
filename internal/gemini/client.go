// Package gemini turns receipt images into expense submission drafts using
// the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for receipt extraction.
const DefaultModel = "gemini-2.5-flash"

// ContentGenerator is the part of the genai API the parser needs.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type modelsAdapter struct {
	models *genai.Models
}

func (m *modelsAdapter) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	resp, err := m.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("genai.GenerateContent: %w", err)
	}
	return resp, nil
}

// Client parses receipts with Gemini.
type Client struct {
	generator  ContentGenerator
	model      string
	categories []string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModel overrides the Gemini model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

// WithCategories replaces the category list offered to the model.
func WithCategories(categories []string) ClientOption {
	return func(c *Client) {
		if len(categories) > 0 {
			c.categories = categories
		}
	}
}

// NewClient creates a Client backed by the Gemini API.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return NewClientWithGenerator(&modelsAdapter{models: client.Models}, opts...), nil
}

// NewClientWithGenerator creates a Client over any ContentGenerator.
func NewClientWithGenerator(generator ContentGenerator, opts ...ClientOption) *Client {
	c := &Client{
		generator:  generator,
		model:      DefaultModel,
		categories: DefaultCategories,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model reports the model the client sends requests to.
func (c *Client) Model() string {
	return c.model
}
