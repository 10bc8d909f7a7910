package utils

import (
	"unicode/utf8"

	"go.uber.org/zap"
)

// TextProcessor prepares message bodies for inclusion in oracle prompts.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// ClipExcerpt truncates text to at most maxSize bytes on a valid UTF-8
// boundary. A maxSize of zero or less disables clipping.
func (tp *TextProcessor) ClipExcerpt(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	clipped := text[:maxSize]
	for !utf8.ValidString(clipped) && len(clipped) > 0 {
		clipped = clipped[:len(clipped)-1]
	}

	tp.logger.Debug("Body excerpt clipped",
		zap.Int("original_size", len(text)),
		zap.Int("clipped_size", len(clipped)),
		zap.Int("max_size", maxSize))

	return clipped
}

// SanitizeUTF8 drops invalid UTF-8 sequences from the string.
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(text[i:]); size == 1 {
				continue
			}
		}
		result = append(result, r)
	}
	return string(result)
}

// ProcessExcerpt clips and sanitizes in one operation.
func (tp *TextProcessor) ProcessExcerpt(text string, maxSize int) string {
	return tp.SanitizeUTF8(tp.ClipExcerpt(text, maxSize))
}
