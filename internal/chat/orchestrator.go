package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bull/portfolio-chat/internal/embedding"
	"github.com/bull/portfolio-chat/internal/pdfs"
	"github.com/bull/portfolio-chat/internal/session"
	"github.com/bull/portfolio-chat/internal/storage"
)

const (
	// DefaultTopK is how many chunks retrieval pulls per query.
	DefaultTopK = 8

	// DefaultHistoryBudget caps the tokens of prior turns replayed into
	// the prompt. Oldest turns are dropped first.
	DefaultHistoryBudget = 2000

	// maxToolRounds bounds the completion/tool-dispatch loop per query.
	maxToolRounds = 2
)

// Answer is a completed response to one query.
type Answer struct {
	Text         string
	Citations    []string
	ContextEmpty bool
}

// Orchestrator runs the retrieve-assemble-generate loop for a session.
// Queries are serialized; a session's conversation is strictly ordered.
type Orchestrator struct {
	mu sync.Mutex

	gen       GenerationClient
	embedder  embedding.Service
	index     storage.Index
	assembler *Assembler
	tools     *Toolset
	session   *session.Session
	logger    *slog.Logger

	topK          int
	historyBudget int
}

// Options tunes an Orchestrator. Zero values select the defaults.
type Options struct {
	TopK          int
	HistoryBudget int
}

func NewOrchestrator(gen GenerationClient, embedder embedding.Service, index storage.Index,
	assembler *Assembler, tools *Toolset, sess *session.Session, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.HistoryBudget <= 0 {
		opts.HistoryBudget = DefaultHistoryBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		gen:           gen,
		embedder:      embedder,
		index:         index,
		assembler:     assembler,
		tools:         tools,
		session:       sess,
		logger:        logger,
		topK:          opts.TopK,
		historyBudget: opts.HistoryBudget,
	}
}

// Ask answers one query: embed, search, assemble context, generate, and
// dispatch any tool calls. The user and assistant turns are appended to the
// session only after the whole exchange succeeds; on ErrGenerationFailed
// the conversation is exactly as it was.
func (o *Orchestrator) Ask(ctx context.Context, query string) (*Answer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	assembled, err := o.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	messages := o.buildMessages(assembled, query)

	completion, err := o.generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	o.commitTurns(query, completion.Content, assembled.Citations)
	return &Answer{
		Text:         completion.Content,
		Citations:    assembled.Citations,
		ContextEmpty: assembled.Empty,
	}, nil
}

// retrieve embeds the query and assembles statement context from the
// nearest chunks.
func (o *Orchestrator) retrieve(ctx context.Context, query string) (*Context, error) {
	vectors, err := o.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	results, err := o.index.Search(ctx, vectors[0], o.topK)
	if err != nil {
		return nil, err
	}

	assembled := o.assembler.Assemble(results)
	o.logger.Debug("context assembled",
		"results", len(results),
		"cited", len(assembled.Citations),
		"tokens", assembled.Tokens,
		"empty", assembled.Empty)
	return assembled, nil
}

// buildMessages lays out system prompt, truncated history, then the query.
func (o *Orchestrator) buildMessages(assembled *Context, query string) []Message {
	messages := []Message{{Role: roleSystem, Content: buildSystemPrompt(assembled.Text)}}
	for _, turn := range o.truncatedHistory() {
		messages = append(messages, Message{Role: string(turn.Role), Content: turn.Text})
	}
	return append(messages, Message{Role: roleUser, Content: query})
}

// truncatedHistory returns the most recent turns that fit the history
// budget, oldest dropped first, order preserved.
func (o *Orchestrator) truncatedHistory() []session.Turn {
	turns := o.session.Turns()
	used := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := pdfs.EstimateTokens(turns[i].Text)
		if used+cost > o.historyBudget {
			break
		}
		used += cost
		start = i
	}
	return turns[start:]
}

// generate runs the completion and resolves tool calls, bounded rounds.
func (o *Orchestrator) generate(ctx context.Context, messages []Message) (*Completion, error) {
	completion, err := o.gen.Complete(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	for round := 0; round < maxToolRounds && len(completion.ToolCalls) > 0; round++ {
		messages = append(messages, Message{Role: roleAssistant, Raw: completion.Raw})
		for _, call := range completion.ToolCalls {
			o.logger.Info("dispatching tool call", "tool", call.Name)
			messages = append(messages, Message{
				Role:       roleTool,
				Content:    o.tools.Dispatch(ctx, call),
				ToolCallID: call.ID,
			})
		}

		// Final round gets no tools so the model must answer.
		withTools := round < maxToolRounds-1
		completion, err = o.gen.Complete(ctx, messages, withTools)
		if err != nil {
			return nil, err
		}
	}

	return completion, nil
}

func (o *Orchestrator) commitTurns(query, answer string, citations []string) {
	o.session.AppendTurn(session.Turn{Role: session.RoleUser, Text: query})
	o.session.AppendTurn(session.Turn{Role: session.RoleAssistant, Text: answer, Citations: citations})
}
