package dto

import (
	"time"

	"scriptgen-api/internal/application/generation"
	"scriptgen-api/internal/domain/entity"
)

// CreateGenerationRequest 发起生成请求
type CreateGenerationRequest struct {
	Topic           string  `json:"topic" binding:"required"`
	Audience        string  `json:"audience"`
	DurationMinutes float64 `json:"duration_minutes" binding:"required"`
	Language        string  `json:"language"`
	Tone            string  `json:"tone"`
	ChannelName     string  `json:"channel_name"`
	ExtraNotes      string  `json:"extra_notes"`
	CodeFocused     bool    `json:"code_focused"`
	GenerateImages  bool    `json:"generate_images"`
	IncludeChapters bool    `json:"include_chapters"`
	IncludeBRoll    bool    `json:"include_broll"`
	IncludeShorts   bool    `json:"include_shorts"`
}

// ToVideoConfig 转换为领域配置
func (r *CreateGenerationRequest) ToVideoConfig() entity.VideoConfig {
	return entity.VideoConfig{
		Topic:           r.Topic,
		Audience:        r.Audience,
		DurationMinutes: r.DurationMinutes,
		Language:        entity.LanguageStyle(r.Language),
		Tone:            r.Tone,
		ChannelName:     r.ChannelName,
		ExtraNotes:      r.ExtraNotes,
		CodeFocused:     r.CodeFocused,
		GenerateImages:  r.GenerateImages,
		IncludeChapters: r.IncludeChapters,
		IncludeBRoll:    r.IncludeBRoll,
		IncludeShorts:   r.IncludeShorts,
	}
}

// RunStartedEvent SSE started 事件
type RunStartedEvent struct {
	RunID  string               `json:"run_id"`
	Cost   int64                `json:"cost"`
	Timing entity.TimingWindows `json:"timing"`
}

// RunResultEvent SSE result 事件
type RunResultEvent struct {
	RunID      string              `json:"run_id"`
	Debited    bool                `json:"debited"`
	Saved      bool                `json:"saved"`
	Generation *GenerationResponse `json:"generation"`
}

// RunErrorEvent SSE error 事件
type RunErrorEvent struct {
	RunID   string `json:"run_id"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// GenerationResponse 生成结果详情
type GenerationResponse struct {
	ID              string                                 `json:"id"`
	Topic           string                                 `json:"topic"`
	Language        entity.LanguageStyle                   `json:"language"`
	DurationMinutes float64                                `json:"duration_minutes"`
	Config          entity.VideoConfig                     `json:"config"`
	Timing          entity.TimingWindows                   `json:"timing"`
	Script          string                                 `json:"script"`
	Sections        map[entity.Stage]string                `json:"sections"`
	SEO             *entity.SEOBundle                      `json:"seo"`
	ImagePrompts    []entity.ImagePrompt                   `json:"image_prompts"`
	Chapters        []entity.Chapter                       `json:"chapters"`
	BRoll           []entity.BRollSuggestion               `json:"broll"`
	Shorts          []entity.ShortClip                     `json:"shorts"`
	ArtifactStatus  map[entity.Stage]entity.ArtifactStatus `json:"artifact_status"`
	Tags            []string                               `json:"tags"`
	Translations    map[string]string                      `json:"translations,omitempty"`
	Cost            int64                                  `json:"cost"`
	CreatedAt       time.Time                              `json:"created_at"`
	UpdatedAt       time.Time                              `json:"updated_at"`
}

// ToGenerationResponse 实体转换为响应
func ToGenerationResponse(g *entity.Generation) *GenerationResponse {
	if g == nil {
		return nil
	}
	return &GenerationResponse{
		ID:              g.ID,
		Topic:           g.Topic,
		Language:        g.Language,
		DurationMinutes: g.DurationMinutes,
		Config:          g.Config,
		Timing:          g.Timing,
		Script:          g.Script,
		Sections:        g.Sections,
		SEO:             g.SEO,
		ImagePrompts:    g.ImagePrompts,
		Chapters:        g.Chapters,
		BRoll:           g.BRoll,
		Shorts:          g.Shorts,
		ArtifactStatus:  g.ArtifactStatus,
		Tags:            []string(g.Tags),
		Translations:    g.Translations,
		Cost:            g.Cost,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
}

// GenerationSummary 历史列表项
type GenerationSummary struct {
	ID              string               `json:"id"`
	Topic           string               `json:"topic"`
	Language        entity.LanguageStyle `json:"language"`
	DurationMinutes float64              `json:"duration_minutes"`
	Tags            []string             `json:"tags"`
	Cost            int64                `json:"cost"`
	CreatedAt       time.Time            `json:"created_at"`
}

// ToGenerationSummaries 转换历史列表
func ToGenerationSummaries(items []*entity.Generation) []*GenerationSummary {
	out := make([]*GenerationSummary, 0, len(items))
	for _, g := range items {
		out = append(out, &GenerationSummary{
			ID:              g.ID,
			Topic:           g.Topic,
			Language:        g.Language,
			DurationMinutes: g.DurationMinutes,
			Tags:            []string(g.Tags),
			Cost:            g.Cost,
			CreatedAt:       g.CreatedAt,
		})
	}
	return out
}

// RegenerateResponse 单段重新生成响应
type RegenerateResponse struct {
	GenerationID string       `json:"generation_id"`
	Section      entity.Stage `json:"section"`
	Text         string       `json:"text"`
	Script       string       `json:"script"`
	Debited      bool         `json:"debited"`
	Saved        bool         `json:"saved"`
}

// ToRegenerateResponse 转换重新生成结果
func ToRegenerateResponse(out *generation.RegenerateOutcome) *RegenerateResponse {
	return &RegenerateResponse{
		GenerationID: out.Generation.ID,
		Section:      out.Section,
		Text:         out.Text,
		Script:       out.Generation.Script,
		Debited:      out.Debited,
		Saved:        out.Saved,
	}
}

// TranslateRequest 翻译请求
type TranslateRequest struct {
	TargetLanguage string `json:"target_language" binding:"required,max=64"`
}

// TranslateResponse 翻译响应
type TranslateResponse struct {
	GenerationID   string `json:"generation_id"`
	TargetLanguage string `json:"target_language"`
	Text           string `json:"text"`
}

// CancelResponse 取消响应
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}
