package embedding

import "errors"

// ErrUnavailable reports that the embedding service could not produce
// vectors after bounded retries. Callers must treat it as fatal to the
// enclosing indexing or query operation; no partial vectors are ever
// returned alongside it.
var ErrUnavailable = errors.New("embedding service unavailable")
