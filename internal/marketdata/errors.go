package marketdata

import "errors"

// ErrPriceUnavailable classifies quote and history failures for a single
// ticker. Batch lookups mark the failing ticker and keep going.
var ErrPriceUnavailable = errors.New("price unavailable")
