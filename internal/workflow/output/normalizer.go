// Package output 将模型原始输出解析为类型化结果，解析失败时降级为空值
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/workflow/node"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/metrics"
)

// Result 解析结果，Parsed 为 false 时 Value 为安全的空值
type Result[T any] struct {
	Value  T
	Parsed bool
}

// 数组可能被包在这些键下
var wrapperKeys = map[string][]string{
	"image_prompts": {"prompts", "image_prompts", "images", "items"},
	"chapters":      {"chapters", "items"},
	"broll":         {"suggestions", "broll", "b_roll", "items"},
	"shorts":        {"shorts", "clips", "items"},
}

// flexInt 接受数字或数字字符串
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil
		}
		*f = flexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(int(n))
	return nil
}

type rawImagePrompt struct {
	ID        flexInt `json:"id"`
	Timestamp string  `json:"timestamp"`
	Section   string  `json:"section"`
	Prompt    string  `json:"prompt"`
	Style     string  `json:"style"`
}

type rawChapter struct {
	ID        flexInt `json:"id"`
	Timestamp string  `json:"timestamp"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
}

type rawBRoll struct {
	ID          flexInt `json:"id"`
	Timestamp   string  `json:"timestamp"`
	Shot        string  `json:"shot"`
	Description string  `json:"description"`
	Source      string  `json:"source"`
}

type rawShort struct {
	ID        flexInt `json:"id"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Title     string  `json:"title"`
	Hook      string  `json:"hook"`
	Script    string  `json:"script"`
	Caption   string  `json:"caption"`
}

// stableID 模型未给出 id 时按生成顺序编号
func stableID(id flexInt, index int) int {
	if id > 0 {
		return int(id)
	}
	return index + 1
}

// ImagePrompts 解析配图提示词
func ImagePrompts(ctx context.Context, raw string) Result[[]entity.ImagePrompt] {
	items, ok := decodeArray[rawImagePrompt](ctx, "image_prompts", raw)
	out := make([]entity.ImagePrompt, 0, len(items))
	for i, it := range items {
		out = append(out, entity.ImagePrompt{
			ID:        stableID(it.ID, i),
			Timestamp: strings.TrimSpace(it.Timestamp),
			Section:   strings.TrimSpace(it.Section),
			Prompt:    strings.TrimSpace(it.Prompt),
			Style:     strings.TrimSpace(it.Style),
		})
	}
	return Result[[]entity.ImagePrompt]{Value: out, Parsed: ok}
}

// Chapters 解析章节标记
func Chapters(ctx context.Context, raw string) Result[[]entity.Chapter] {
	items, ok := decodeArray[rawChapter](ctx, "chapters", raw)
	out := make([]entity.Chapter, 0, len(items))
	for i, it := range items {
		out = append(out, entity.Chapter{
			ID:        stableID(it.ID, i),
			Timestamp: strings.TrimSpace(it.Timestamp),
			Title:     strings.TrimSpace(it.Title),
			Summary:   strings.TrimSpace(it.Summary),
		})
	}
	return Result[[]entity.Chapter]{Value: out, Parsed: ok}
}

// BRoll 解析空镜建议
func BRoll(ctx context.Context, raw string) Result[[]entity.BRollSuggestion] {
	items, ok := decodeArray[rawBRoll](ctx, "broll", raw)
	out := make([]entity.BRollSuggestion, 0, len(items))
	for i, it := range items {
		out = append(out, entity.BRollSuggestion{
			ID:          stableID(it.ID, i),
			Timestamp:   strings.TrimSpace(it.Timestamp),
			Shot:        strings.TrimSpace(it.Shot),
			Description: strings.TrimSpace(it.Description),
			Source:      strings.TrimSpace(it.Source),
		})
	}
	return Result[[]entity.BRollSuggestion]{Value: out, Parsed: ok}
}

// Shorts 解析短视频切片
func Shorts(ctx context.Context, raw string) Result[[]entity.ShortClip] {
	items, ok := decodeArray[rawShort](ctx, "shorts", raw)
	out := make([]entity.ShortClip, 0, len(items))
	for i, it := range items {
		out = append(out, entity.ShortClip{
			ID:        stableID(it.ID, i),
			StartTime: strings.TrimSpace(it.StartTime),
			EndTime:   strings.TrimSpace(it.EndTime),
			Title:     strings.TrimSpace(it.Title),
			Hook:      strings.TrimSpace(it.Hook),
			Script:    strings.TrimSpace(it.Script),
			Caption:   strings.TrimSpace(it.Caption),
		})
	}
	return Result[[]entity.ShortClip]{Value: out, Parsed: ok}
}

// decodeArray 接受顶层数组或包装对象，任何解析错误都返回空结果，不做部分恢复
func decodeArray[T any](ctx context.Context, format, raw string) ([]T, bool) {
	span := node.ExtractJSONValue(node.StripCodeFence(raw))
	if !node.IsValidJSON(span) {
		parseFailed(ctx, format, raw, "no valid json value")
		return nil, false
	}

	var items []T
	if strings.HasPrefix(span, "[") {
		if err := json.Unmarshal([]byte(span), &items); err != nil {
			parseFailed(ctx, format, raw, err.Error())
			return nil, false
		}
		return items, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &wrapper); err != nil {
		parseFailed(ctx, format, raw, err.Error())
		return nil, false
	}
	for _, key := range wrapperKeys[format] {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &items); err != nil {
			parseFailed(ctx, format, raw, err.Error())
			return nil, false
		}
		return items, true
	}
	parseFailed(ctx, format, raw, "no array field in object")
	return nil, false
}

func parseFailed(ctx context.Context, format, raw, reason string) {
	metrics.ParseFallbackTotal.WithLabelValues(format, "empty").Inc()
	logger.Warn(ctx, "structured output could not be parsed",
		"format", format,
		"reason", reason,
		"raw_preview", node.TruncateByRunes(strings.TrimSpace(raw), 200),
	)
}

// PlainText 纯文本阶段仅去除首尾空白
func PlainText(raw string) string {
	return strings.TrimSpace(raw)
}
