package entity

// RankedItem 带评分的候选项（标题、标签、缩略图创意）
type RankedItem struct {
	Text  string `json:"text"`
	Score int    `json:"score"`
}

// SEOBundle SEO 元数据
type SEOBundle struct {
	Titles      []RankedItem `json:"titles"`
	Description string       `json:"description"`
	Tags        []RankedItem `json:"tags"`
	Thumbnails  []RankedItem `json:"thumbnails"`
	Comment     string       `json:"comment"`
}

// IsEmpty 所有字段均为空视为解析失败
func (b SEOBundle) IsEmpty() bool {
	return len(b.Titles) == 0 && b.Description == "" && len(b.Tags) == 0 &&
		len(b.Thumbnails) == 0 && b.Comment == ""
}

// TagTexts 标签文本
func (b SEOBundle) TagTexts() []string {
	out := make([]string, 0, len(b.Tags))
	for _, t := range b.Tags {
		out = append(out, t.Text)
	}
	return out
}

// ImagePrompt 配图提示词
type ImagePrompt struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Section   string `json:"section,omitempty"`
	Prompt    string `json:"prompt"`
	Style     string `json:"style,omitempty"`
}

// Chapter YouTube 章节标记
type Chapter struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Title     string `json:"title"`
	Summary   string `json:"summary,omitempty"`
}

// BRollSuggestion 空镜素材建议
type BRollSuggestion struct {
	ID          int    `json:"id"`
	Timestamp   string `json:"timestamp"`
	Shot        string `json:"shot"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
}

// ShortClip 短视频切片
type ShortClip struct {
	ID        int    `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Title     string `json:"title"`
	Hook      string `json:"hook,omitempty"`
	Script    string `json:"script,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// ArtifactStatus 可选物料的执行结果
type ArtifactStatus string

const (
	ArtifactDisabled  ArtifactStatus = "disabled"
	ArtifactSucceeded ArtifactStatus = "succeeded"
	ArtifactFailed    ArtifactStatus = "failed"
	ArtifactSkipped   ArtifactStatus = "skipped"
)

// ArtifactSet 一次运行产出的全部物料，nil 表示未启用或失败
type ArtifactSet struct {
	SEO          *SEOBundle                `json:"seo"`
	ImagePrompts []ImagePrompt             `json:"image_prompts"`
	Chapters     []Chapter                 `json:"chapters"`
	BRoll        []BRollSuggestion         `json:"broll"`
	Shorts       []ShortClip               `json:"shorts"`
	Status       map[Stage]ArtifactStatus `json:"status"`
}
