package translate

import (
	"context"
	"fmt"
	"strings"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/workflow/output"
	"scriptgen-api/internal/workflow/port"
	"scriptgen-api/internal/workflow/prompt"
	"scriptgen-api/pkg/logger"
)

// Translator 逐块顺序翻译，任一块失败则整体失败
type Translator struct {
	gen       port.Generator
	builder   *prompt.Builder
	chunkSize int
}

// NewTranslator 创建翻译器
func NewTranslator(gen port.Generator, builder *prompt.Builder, chunkSize int) *Translator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Translator{gen: gen, builder: builder, chunkSize: chunkSize}
}

// Translate 翻译全文，返回按原顺序拼接的译文
func (t *Translator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if strings.TrimSpace(targetLanguage) == "" {
		return "", fmt.Errorf("%w: target language is required", prompt.ErrMissingContext)
	}
	chunks := SplitChunks(text, t.chunkSize)
	if len(chunks) == 0 {
		return "", nil
	}

	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		req, err := t.builder.Build(ctx, entity.StageTranslate, prompt.StageInput{
			Text:           chunk,
			TargetLanguage: targetLanguage,
		})
		if err != nil {
			return "", err
		}
		raw, err := t.gen.Generate(ctx, req)
		if err != nil {
			logger.Warn(ctx, "translation chunk failed",
				"chunk", i,
				"chunks", len(chunks),
				"target_language", targetLanguage,
				"error", err.Error(),
			)
			return "", fmt.Errorf("translate chunk %d of %d: %w", i+1, len(chunks), err)
		}
		translated = append(translated, output.PlainText(raw))
	}

	logger.Info(ctx, "translation completed", "chunks", len(chunks), "target_language", targetLanguage)
	return strings.Join(translated, ChunkSeparator), nil
}
