package llm

import (
	"errors"
	"fmt"
)

// ErrDegenerate reports a reply with no usable content.
var ErrDegenerate = errors.New("degenerate generation")

// GenerationError wraps a provider failure: timeout, transport error,
// non-2xx status or undecodable body.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
