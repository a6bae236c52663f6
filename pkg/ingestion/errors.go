package ingestion

import "errors"

// ErrValidation marks malformed payloads. Terminal: the event is logged and
// dropped, never retried.
var ErrValidation = errors.New("payload validation failed")
