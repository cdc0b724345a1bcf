// Package ai holds the provider-neutral pieces shared by every text
// generation call: interfaces, error classes, prompt rendering and JSON
// extraction from model output.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrGenerationTimeout is returned when a generator call exceeds its deadline.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrGenerationMalformed is returned when generator output cannot be parsed.
	ErrGenerationMalformed = errors.New("generation output malformed")
)

// Generator produces a text completion for a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
