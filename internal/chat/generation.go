package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v3"
)

// Message is a provider-neutral conversation message. Raw carries a
// provider-specific echo of an assistant tool-call message so follow-up
// rounds can replay it verbatim; fakes ignore it.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	Raw        any
}

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
	roleTool      = "tool"
)

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Completion is one model response.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
	Raw       any
}

// GenerationClient produces completions. The orchestrator depends on this
// interface so tests can script responses.
type GenerationClient interface {
	// Complete returns a single completion, optionally offering the
	// portfolio analysis tools.
	Complete(ctx context.Context, messages []Message, withTools bool) (*Completion, error)

	// CompleteStream streams answer tokens through emit in generation
	// order and returns the full text. Tools are not offered.
	CompleteStream(ctx context.Context, messages []Message, emit func(token string) error) (string, error)
}

// OpenAIGenerator is the OpenAI-backed GenerationClient. Transient API
// failures retry with exponential backoff.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator wraps an OpenAI client for chat completion. An empty
// model selects GPT-4o.
func NewOpenAIGenerator(client *openai.Client, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	return &OpenAIGenerator{client: client, model: model}
}

// Complete implements GenerationClient.
func (g *OpenAIGenerator) Complete(ctx context.Context, messages []Message, withTools bool) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: toOpenAIMessages(messages),
	}
	if withTools {
		params.Tools = toolDefs()
	}

	var completion *Completion
	operation := func() error {
		resp, err := g.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty completion response"))
		}

		msg := resp.Choices[0].Message
		c := &Completion{Content: msg.Content, Raw: msg.ToParam()}
		for _, tc := range msg.ToolCalls {
			c.ToolCalls = append(c.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		completion = c
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return completion, nil
}

// CompleteStream implements GenerationClient. Streaming is not retried;
// tokens already emitted cannot be taken back.
func (g *OpenAIGenerator) CompleteStream(ctx context.Context, messages []Message, emit func(string) error) (string, error) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: toOpenAIMessages(messages),
	})
	defer stream.Close()

	var acc openai.ChatCompletionAccumulator
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := emit(chunk.Choices[0].Delta.Content); err != nil {
				return "", err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	if len(acc.Choices) == 0 {
		return "", fmt.Errorf("empty streaming response")
	}
	return acc.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		if union, ok := m.Raw.(openai.ChatCompletionMessageParamUnion); ok {
			out = append(out, union)
			continue
		}
		switch m.Role {
		case roleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case roleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case roleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// isTransient reports whether a completion failure is worth retrying:
// rate limiting, server-side errors, or plain network failures.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
