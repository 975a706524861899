// Package prompt 将阶段、视频配置与上下文组装为生成请求
package prompt

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"scriptgen-api/internal/application/timing"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/workflow/node"
)

var (
	// ErrUnknownStage 阶段没有对应模板
	ErrUnknownStage = errors.New("unknown stage")
	// ErrMissingContext 阶段所需的上下文缺失
	ErrMissingContext = errors.New("missing required context")
)

// DefaultPriorTextRunes 上文摘录保留的最大字符数
const DefaultPriorTextRunes = 1500

// ModelTier 模型档位
type ModelTier int

const (
	TierPrimary ModelTier = iota
	TierFast
)

// ModelSet 各档位对应的模型名
type ModelSet struct {
	Primary string
	Fast    string
}

func (m ModelSet) pick(t ModelTier) string {
	if t == TierFast && m.Fast != "" {
		return m.Fast
	}
	return m.Primary
}

type stageProfile struct {
	tier        ModelTier
	maxTokens   int
	temperature float32
	structured  bool
	needsPrior  bool
	needsText   bool
}

var profiles = map[entity.Stage]stageProfile{
	entity.StageHookIntro:       {tier: TierPrimary, maxTokens: 1200, temperature: 0.8},
	entity.StageMainContent:     {tier: TierPrimary, maxTokens: 4000, temperature: 0.7, needsPrior: true},
	entity.StageDemoOutro:       {tier: TierPrimary, maxTokens: 2500, temperature: 0.7, needsPrior: true},
	entity.StageProductionNotes: {tier: TierFast, maxTokens: 1500, temperature: 0.5, needsText: true},
	entity.StageSEO:             {tier: TierFast, maxTokens: 1500, temperature: 0.6, structured: true, needsText: true},
	entity.StageImagePrompts:    {tier: TierFast, maxTokens: 2000, temperature: 0.7, structured: true, needsText: true},
	entity.StageChapters:        {tier: TierFast, maxTokens: 1000, temperature: 0.3, structured: true, needsText: true},
	entity.StageBRoll:           {tier: TierFast, maxTokens: 1500, temperature: 0.6, structured: true, needsText: true},
	entity.StageShorts:          {tier: TierFast, maxTokens: 2000, temperature: 0.7, structured: true, needsText: true},
	entity.StageTranslate:       {tier: TierPrimary, maxTokens: 4000, temperature: 0.2, needsText: true},
}

var languageInstructions = map[entity.LanguageStyle]string{
	entity.LanguageEnglish:  "Write in clear, conversational English.",
	entity.LanguageHinglish: "Write in Hinglish: Hindi in Roman script mixed naturally with English technical terms, the way Indian tech creators speak.",
	entity.LanguageTanglish: "Write in Tanglish: Tamil in Roman script mixed naturally with English technical terms, the way Tamil tech creators speak.",
	entity.LanguageFormal:   "Write in formal, precise English suited to a professional audience. Avoid slang.",
}

// 口播语速（词/分钟）与词到 token 的估算系数
const (
	wordsPerMinute = 150
	tokensPerWord  = 1.6
	maxMainTokens  = 8000
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// StageInput 组装请求所需的上下文
type StageInput struct {
	Config entity.VideoConfig
	Timing entity.TimingWindows
	// PriorText 已生成的前文，仅保留末尾部分
	PriorText string
	// Text 供衍生物料、制作笔记或翻译使用的完整文本
	Text           string
	TargetLanguage string
}

// Builder 纯函数式的请求构造器，无网络与状态访问
type Builder struct {
	registry       *Registry
	models         ModelSet
	priorTextRunes int
}

// NewBuilder 创建构造器
func NewBuilder(models ModelSet, priorTextRunes int) *Builder {
	if priorTextRunes <= 0 {
		priorTextRunes = DefaultPriorTextRunes
	}
	return &Builder{
		registry:       NewRegistry(),
		models:         models,
		priorTextRunes: priorTextRunes,
	}
}

// Structured 阶段是否要求 JSON 输出
func Structured(stage entity.Stage) bool {
	return profiles[stage].structured
}

// Build 构造某阶段的生成请求
func (b *Builder) Build(ctx context.Context, stage entity.Stage, in StageInput) (*entity.GenerationRequest, error) {
	profile, ok := profiles[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	if profile.needsPrior && strings.TrimSpace(in.PriorText) == "" {
		return nil, fmt.Errorf("%w: stage %s needs prior script text", ErrMissingContext, stage)
	}
	if profile.needsText && strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: stage %s needs source text", ErrMissingContext, stage)
	}
	if stage == entity.StageTranslate && strings.TrimSpace(in.TargetLanguage) == "" {
		return nil, fmt.Errorf("%w: translation needs a target language", ErrMissingContext)
	}

	tpl, err := b.registry.ChatTemplate(stage)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, b.variables(in))
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt for %s: %w", stage, err)
	}
	system, user := splitMessages(msgs)

	maxTokens := profile.maxTokens
	if stage == entity.StageMainContent {
		maxTokens = mainContentTokens(in.Timing, maxTokens)
	}

	return &entity.GenerationRequest{
		Stage:            stage,
		SystemPrompt:     system,
		UserPrompt:       user,
		Model:            b.models.pick(profile.tier),
		MaxOutputTokens:  maxTokens,
		StructuredOutput: profile.structured,
		Temperature:      profile.temperature,
	}, nil
}

func (b *Builder) variables(in StageInput) map[string]any {
	cfg := in.Config
	w := in.Timing
	style := cfg.Language.Normalize()

	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "beginners to intermediate learners"
	}
	tone := strings.TrimSpace(cfg.Tone)
	if tone == "" {
		tone = "friendly and energetic"
	}

	return map[string]any{
		"topic":                strings.TrimSpace(cfg.Topic),
		"audience":             audience,
		"tone":                 tone,
		"channel_name":         strings.TrimSpace(cfg.ChannelName),
		"extra_notes":          strings.TrimSpace(cfg.ExtraNotes),
		"duration_minutes":     strconv.FormatFloat(cfg.DurationMinutes, 'f', -1, 64),
		"language":             string(style),
		"language_instruction": languageInstructions[style],
		"code_focused":         cfg.CodeFocused,
		"include_chapters":     cfg.IncludeChapters,
		"generate_images":      cfg.GenerateImages,
		"include_broll":        cfg.IncludeBRoll,
		"hook_window":          window(w.HookStart, w.HookEnd),
		"intro_window":         window(w.IntroStart, w.IntroEnd),
		"main_window":          window(w.MainStart, w.MainEnd),
		"demo_window":          window(w.DemoStart, w.DemoEnd),
		"outro_window":         window(w.OutroStart, w.OutroEnd),
		"outro_end":            timing.FormatClock(w.OutroEnd),
		"main_word_target":     (w.MainEnd - w.MainStart) * wordsPerMinute / 60,
		"prior_text":           node.TailByRunes(strings.TrimSpace(in.PriorText), b.priorTextRunes),
		"text":                 strings.TrimSpace(in.Text),
		"target_language":      strings.TrimSpace(in.TargetLanguage),
	}
}

func window(start, end int) string {
	return timing.FormatClock(start) + "-" + timing.FormatClock(end)
}

// mainContentTokens 按主体时长估算输出上限
func mainContentTokens(w entity.TimingWindows, floor int) int {
	words := (w.MainEnd - w.MainStart) * wordsPerMinute / 60
	tokens := int(float64(words) * tokensPerWord)
	return min(max(tokens, floor), maxMainTokens)
}

func splitMessages(msgs []*schema.Message) (system, user string) {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		content := strings.TrimSpace(blankRuns.ReplaceAllString(m.Content, "\n\n"))
		switch m.Role {
		case schema.System:
			system = content
		case schema.User:
			user = content
		}
	}
	return system, user
}
