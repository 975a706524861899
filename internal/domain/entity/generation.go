package entity

import (
	"time"

	"github.com/lib/pq"
)

// GenerationRequest 单次文本生成调用的参数，发出后不再修改
type GenerationRequest struct {
	Stage            Stage   `json:"stage"`
	SystemPrompt     string  `json:"system_prompt"`
	UserPrompt       string  `json:"user_prompt"`
	Model            string  `json:"model"`
	MaxOutputTokens  int     `json:"max_output_tokens"`
	StructuredOutput bool    `json:"structured_output"`
	Temperature      float32 `json:"temperature"`
}

// Generation 已保存的生成结果
type Generation struct {
	ID              string                   `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID          string                   `json:"user_id" gorm:"type:varchar(64);not null;index:idx_generations_user_created,priority:1"`
	Topic           string                   `json:"topic" gorm:"type:text;not null"`
	Language        LanguageStyle            `json:"language" gorm:"type:varchar(32)"`
	DurationMinutes float64                  `json:"duration_minutes"`
	Config          VideoConfig              `json:"config" gorm:"serializer:json;type:jsonb"`
	Timing          TimingWindows            `json:"timing" gorm:"serializer:json;type:jsonb"`
	Sections        map[Stage]string         `json:"sections" gorm:"serializer:json;type:jsonb"`
	Script          string                   `json:"script" gorm:"type:text"`
	SEO             *SEOBundle               `json:"seo" gorm:"serializer:json;type:jsonb"`
	ImagePrompts    []ImagePrompt            `json:"image_prompts" gorm:"serializer:json;type:jsonb"`
	Chapters        []Chapter                `json:"chapters" gorm:"serializer:json;type:jsonb"`
	BRoll           []BRollSuggestion        `json:"broll" gorm:"serializer:json;type:jsonb"`
	Shorts          []ShortClip              `json:"shorts" gorm:"serializer:json;type:jsonb"`
	ArtifactStatus  map[Stage]ArtifactStatus `json:"artifact_status" gorm:"serializer:json;type:jsonb"`
	Tags            pq.StringArray           `json:"tags" gorm:"type:text[]"`
	Translations    map[string]string        `json:"translations,omitempty" gorm:"serializer:json;type:jsonb"`
	Cost            int64                    `json:"cost"`
	CreatedAt       time.Time                `json:"created_at" gorm:"index:idx_generations_user_created,priority:2,sort:desc"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// TableName 表名
func (Generation) TableName() string { return "generations" }

// Assembly 从保存的段落恢复脚本
func (g *Generation) Assembly() ScriptAssembly {
	return AssemblyFromSections(g.Sections)
}

// ApplyAssembly 写回段落与完整脚本
func (g *Generation) ApplyAssembly(a ScriptAssembly) {
	g.Sections = a.Sections()
	g.Script = a.Text()
}

// ApplyArtifacts 写入物料结果
func (g *Generation) ApplyArtifacts(set ArtifactSet) {
	g.SEO = set.SEO
	g.ImagePrompts = set.ImagePrompts
	g.Chapters = set.Chapters
	g.BRoll = set.BRoll
	g.Shorts = set.Shorts
	g.ArtifactStatus = set.Status
	if set.SEO != nil {
		g.Tags = pq.StringArray(set.SEO.TagTexts())
	}
}
