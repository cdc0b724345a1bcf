package ai

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/logger"
	"github.com/siddu28/Erflog/internal/utils"
)

const defaultMaxLogLength = 200

// Caller sends prompts to a Generator and decodes JSON answers.
type Caller struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewCaller(generator Generator, log *zap.Logger, maxLogLength int) *Caller {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	model := ""
	if generator != nil {
		model = generator.Model()
	}
	return &Caller{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", model),
		maxLogLen: maxLogLength,
	}
}

// JSON sends prompt and decodes the answer into target.
// Deadline errors map to ErrGenerationTimeout, undecodable output to ErrGenerationMalformed.
func (c *Caller) JSON(ctx context.Context, label, prompt string, target any) (string, error) {
	if c == nil || c.generator == nil {
		return "", errors.New("generator is not configured")
	}

	c.logger.Debug("generate content request",
		zap.String("call", label),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s: %w", label, ErrGenerationTimeout)
		}
		return "", fmt.Errorf("%s: %w", label, err)
	}

	c.logger.Debug("generate content response",
		zap.String("call", label),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	if err := DecodeJSON(raw, target); err != nil {
		return raw, fmt.Errorf("%s: %w", label, err)
	}
	return raw, nil
}
