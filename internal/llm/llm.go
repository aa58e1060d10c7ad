// Package llm defines the generation capability port consumed by the
// pipeline, plus its live and deterministic implementations.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors for generation failures. Callers use errors.Is to
// distinguish a slow backend from a broken one.
var (
	// ErrGeneration indicates the backend failed to produce text.
	ErrGeneration = errors.New("generation failed")
	// ErrTimeout indicates the backend did not answer within the deadline.
	ErrTimeout = errors.New("generation timed out")
)

// Request is a single prompt sent to the generation backend.
type Request struct {
	System string
	Prompt string
}

// Generator produces text from a prompt. Implementations must honor
// context cancellation and wrap failures in ErrGeneration or ErrTimeout.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
