package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/pkg/logger"
)

// Translator 长文本翻译
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// TranslationService 翻译已保存的脚本并写回生成记录
type TranslationService struct {
	repo       repository.GenerationRepository
	tx         repository.Transactor
	translator Translator
}

// NewTranslationService 创建翻译服务
func NewTranslationService(repo repository.GenerationRepository, tx repository.Transactor, translator Translator) *TranslationService {
	return &TranslationService{repo: repo, tx: tx, translator: translator}
}

// Translate 翻译整篇脚本；任一分块失败时不写入任何译文
func (s *TranslationService) Translate(ctx context.Context, userID, generationID, targetLanguage string) (*entity.Generation, string, error) {
	lang := strings.TrimSpace(targetLanguage)
	gen, err := s.repo.GetByID(ctx, userID, generationID)
	if err != nil {
		return nil, "", err
	}
	if gen == nil {
		return nil, "", ErrGenerationNotFound
	}

	text, err := s.translator.Translate(ctx, gen.Script, lang)
	if err != nil {
		return nil, "", fmt.Errorf("translate generation %s: %w", generationID, err)
	}

	key := strings.ToLower(lang)
	saved, err := modifyGeneration(ctx, s.tx, s.repo, userID, generationID, func(cur *entity.Generation) error {
		if cur.Translations == nil {
			cur.Translations = make(map[string]string, 1)
		}
		cur.Translations[key] = text
		cur.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		// 译文仍返回给调用方
		logger.Error(ctx, "failed to save translation", err, "generation_id", generationID, "language", lang)
		if gen.Translations == nil {
			gen.Translations = make(map[string]string, 1)
		}
		gen.Translations[key] = text
		return gen, text, nil
	}
	return saved, text, nil
}
