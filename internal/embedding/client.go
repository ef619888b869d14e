package embedding

import (
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// Option customizes the embedding client.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL string
}

// WithBaseURL overrides the API endpoint. Tests point this at a local
// server.
func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// NewClient creates an OpenAI client for embedding generation.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is empty")
	}

	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.baseURL))
	}

	client := openai.NewClient(requestOpts...)
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages
// (the chat orchestrator shares it).
func (c *Client) Client() *openai.Client {
	return c.client
}
