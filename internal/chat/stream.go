package chat

import (
	"context"
	"fmt"
)

// AnswerStream delivers answer tokens in generation order. The channel is
// closed on completion or failure; Err distinguishes the two afterwards.
type AnswerStream struct {
	tokens chan string
	cancel context.CancelFunc

	done      chan struct{}
	err       error
	citations []string
}

// Tokens is the ordered token channel. It is closed when the answer is
// complete or the stream failed.
func (s *AnswerStream) Tokens() <-chan string { return s.tokens }

// Err reports the terminal error, if any. Valid once Tokens is closed.
func (s *AnswerStream) Err() error {
	<-s.done
	return s.err
}

// Citations lists the cited chunk ids. Valid once Tokens is closed.
func (s *AnswerStream) Citations() []string {
	<-s.done
	return s.citations
}

// Cancel aborts the stream. The conversation history is not modified.
func (s *AnswerStream) Cancel() { s.cancel() }

// AskStream answers a query as an ordered token stream. Tool calls are not
// offered in streaming mode. Turns are appended to the session only after
// the stream completes successfully; cancellation or failure leaves the
// conversation untouched.
//
// The session stays locked while the stream is live: a caller that stops
// reading Tokens must call Cancel (or cancel ctx), or every later query on
// this session blocks.
func (o *Orchestrator) AskStream(ctx context.Context, query string) (*AnswerStream, error) {
	o.mu.Lock()

	assembled, err := o.retrieve(ctx, query)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}

	messages := o.buildMessages(assembled, query)

	ctx, cancel := context.WithCancel(ctx)
	stream := &AnswerStream{
		tokens:    make(chan string),
		cancel:    cancel,
		done:      make(chan struct{}),
		citations: assembled.Citations,
	}

	go func() {
		defer o.mu.Unlock()
		defer close(stream.done)
		defer close(stream.tokens)
		defer cancel()

		text, err := o.gen.CompleteStream(ctx, messages, func(token string) error {
			select {
			case stream.tokens <- token:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			stream.err = fmt.Errorf("%w: %v", ErrGenerationFailed, err)
			return
		}

		o.commitTurns(query, text, assembled.Citations)
	}()

	return stream, nil
}
