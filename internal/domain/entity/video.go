// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strings"
)

// LanguageStyle 脚本语言风格
type LanguageStyle string

const (
	LanguageEnglish  LanguageStyle = "english"
	LanguageHinglish LanguageStyle = "hinglish"
	LanguageTanglish LanguageStyle = "tanglish"
	LanguageFormal   LanguageStyle = "formal"
)

// Normalize 未识别的风格回退到 english
func (l LanguageStyle) Normalize() LanguageStyle {
	switch LanguageStyle(strings.ToLower(strings.TrimSpace(string(l)))) {
	case LanguageHinglish:
		return LanguageHinglish
	case LanguageTanglish:
		return LanguageTanglish
	case LanguageFormal:
		return LanguageFormal
	default:
		return LanguageEnglish
	}
}

// Stage 生成阶段
type Stage string

const (
	StageHookIntro       Stage = "hook_intro"
	StageMainContent     Stage = "main_content"
	StageDemoOutro       Stage = "demo_outro"
	StageProductionNotes Stage = "production_notes"
	StageSEO             Stage = "seo"
	StageImagePrompts    Stage = "image_prompts"
	StageChapters        Stage = "chapters"
	StageBRoll           Stage = "broll"
	StageShorts          Stage = "shorts"
	StageTranslate       Stage = "translate"
)

// ScriptStages 关键路径上的脚本段落，顺序即拼接顺序
var ScriptStages = []Stage{StageHookIntro, StageMainContent, StageDemoOutro, StageProductionNotes}

// RegenerableStages 支持单段重新生成的阶段
var RegenerableStages = []Stage{StageHookIntro, StageMainContent, StageDemoOutro}

// AllStages 所有已知阶段
var AllStages = []Stage{
	StageHookIntro, StageMainContent, StageDemoOutro, StageProductionNotes,
	StageSEO, StageImagePrompts, StageChapters, StageBRoll, StageShorts, StageTranslate,
}

// ParseStage 解析阶段名
func ParseStage(s string) (Stage, bool) {
	for _, st := range AllStages {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsRegenerable 是否可单段重新生成
func (s Stage) IsRegenerable() bool {
	for _, st := range RegenerableStages {
		if st == s {
			return true
		}
	}
	return false
}

// VideoConfig 用户提交的视频参数
type VideoConfig struct {
	Topic           string        `json:"topic"`
	Audience        string        `json:"audience,omitempty"`
	DurationMinutes float64       `json:"duration_minutes"`
	Language        LanguageStyle `json:"language,omitempty"`
	Tone            string        `json:"tone,omitempty"`
	ChannelName     string        `json:"channel_name,omitempty"`
	ExtraNotes      string        `json:"extra_notes,omitempty"`

	CodeFocused     bool `json:"code_focused"`
	GenerateImages  bool `json:"generate_images"`
	IncludeChapters bool `json:"include_chapters"`
	IncludeBRoll    bool `json:"include_broll"`
	IncludeShorts   bool `json:"include_shorts"`
}

const (
	maxTopicRunes      = 300
	maxDurationMinutes = 180
)

// Validate 在任何外部调用之前校验配置
func (c VideoConfig) Validate() error {
	topic := strings.TrimSpace(c.Topic)
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if len([]rune(topic)) > maxTopicRunes {
		return fmt.Errorf("topic must be at most %d characters", maxTopicRunes)
	}
	if c.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if c.DurationMinutes > maxDurationMinutes {
		return fmt.Errorf("duration_minutes must be at most %d", maxDurationMinutes)
	}
	return nil
}

// OptionalArtifacts 已启用的可选物料，按固定顺序返回
func (c VideoConfig) OptionalArtifacts() []Stage {
	stages := make([]Stage, 0, 4)
	if c.GenerateImages {
		stages = append(stages, StageImagePrompts)
	}
	if c.IncludeChapters {
		stages = append(stages, StageChapters)
	}
	if c.IncludeBRoll {
		stages = append(stages, StageBRoll)
	}
	if c.IncludeShorts {
		stages = append(stages, StageShorts)
	}
	return stages
}

// Enabled 判断某阶段在该配置下是否会执行
func (c VideoConfig) Enabled(stage Stage) bool {
	switch stage {
	case StageImagePrompts:
		return c.GenerateImages
	case StageChapters:
		return c.IncludeChapters
	case StageBRoll:
		return c.IncludeBRoll
	case StageShorts:
		return c.IncludeShorts
	case StageTranslate:
		return false
	default:
		return true
	}
}
