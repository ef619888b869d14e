package pdfs

import "errors"

// ErrUnreadableDocument reports a byte stream that is not a parseable PDF
// container. It is surfaced to the caller, never retried.
var ErrUnreadableDocument = errors.New("unreadable pdf document")
