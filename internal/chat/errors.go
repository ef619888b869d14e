package chat

import "errors"

// ErrGenerationFailed classifies answer-generation failures after retries
// are exhausted. The conversation history is left untouched when it fires.
var ErrGenerationFailed = errors.New("answer generation failed")
