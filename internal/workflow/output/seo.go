package output

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/workflow/node"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/metrics"
)

// JSON 格式缺省评分
const (
	DefaultTitleScore     = 90
	DefaultTagScore       = 70
	DefaultThumbnailScore = 80
)

// 旧版分段文本格式缺省评分
const (
	LegacyTitleScore     = 85
	LegacyTagScore       = 60
	LegacyThumbnailScore = 75
)

type seoPayload struct {
	Titles      json.RawMessage `json:"titles"`
	Description json.RawMessage `json:"description"`
	Tags        json.RawMessage `json:"tags"`
	Thumbnails  json.RawMessage `json:"thumbnails"`
	Comment     json.RawMessage `json:"comment"`
}

// SEO 三级降级：JSON 对象、旧版分段文本、空结果，严格按顺序尝试
func SEO(ctx context.Context, raw string) Result[entity.SEOBundle] {
	if bundle, ok := parseSEOJSON(raw); ok {
		return Result[entity.SEOBundle]{Value: bundle, Parsed: true}
	}
	if bundle, ok := parseSEOLegacy(raw); ok {
		metrics.ParseFallbackTotal.WithLabelValues("seo", "legacy").Inc()
		logger.Warn(ctx, "seo output parsed with legacy text format")
		return Result[entity.SEOBundle]{Value: bundle, Parsed: true}
	}
	parseFailed(ctx, "seo", raw, "neither json nor legacy markers")
	return Result[entity.SEOBundle]{Value: entity.SEOBundle{}, Parsed: false}
}

func parseSEOJSON(raw string) (entity.SEOBundle, bool) {
	span := node.ExtractJSONObject(node.StripCodeFence(raw))
	if !node.IsValidJSON(span) {
		return entity.SEOBundle{}, false
	}
	var p seoPayload
	if err := json.Unmarshal([]byte(span), &p); err != nil {
		return entity.SEOBundle{}, false
	}
	bundle := entity.SEOBundle{
		Titles:      coerceRanked(p.Titles, DefaultTitleScore),
		Description: coerceText(p.Description),
		Tags:        coerceRanked(p.Tags, DefaultTagScore),
		Thumbnails:  coerceRanked(p.Thumbnails, DefaultThumbnailScore),
		Comment:     coerceText(p.Comment),
	}
	if bundle.IsEmpty() {
		return entity.SEOBundle{}, false
	}
	return bundle, true
}

// coerceRanked 接受字符串数组、对象数组或逗号分隔字符串，空文本的项被丢弃
func coerceRanked(raw json.RawMessage, defaultScore int) []entity.RankedItem {
	if len(raw) == 0 {
		return nil
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return rankedFromStrings(strings.Split(joined, ","), defaultScore)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	out := make([]entity.RankedItem, 0, len(elems))
	for _, e := range elems {
		var s string
		if err := json.Unmarshal(e, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, entity.RankedItem{Text: s, Score: defaultScore})
			}
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(e, &obj); err != nil {
			continue
		}
		text := firstString(obj, "text", "title", "tag", "idea", "value")
		if text == "" {
			continue
		}
		out = append(out, entity.RankedItem{Text: text, Score: scoreOf(obj["score"], defaultScore)})
	}
	return out
}

func coerceText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}
	return ""
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func scoreOf(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(n)), &f); err == nil {
			return int(f)
		}
	}
	return def
}

func rankedFromStrings(items []string, score int) []entity.RankedItem {
	out := make([]entity.RankedItem, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, entity.RankedItem{Text: it, Score: score})
		}
	}
	return out
}

var (
	legacyMarker = regexp.MustCompile(`(?im)^\s*\**\s*(TITLES|DESCRIPTION|TAGS|THUMBNAILS|COMMENT)\s*\**\s*:\s*\**`)
	listPrefix   = regexp.MustCompile(`^\s*(?:\d+\s*[.)\-:]|[-*•])\s*`)
)

// parseSEOLegacy 解析 TITLES:/DESCRIPTION:/TAGS:/THUMBNAILS:/COMMENT: 分段文本
func parseSEOLegacy(raw string) (entity.SEOBundle, bool) {
	text := node.StripCodeFence(raw)
	locs := legacyMarker.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return entity.SEOBundle{}, false
	}

	sections := make(map[string]string, len(locs))
	for i, loc := range locs {
		name := strings.ToUpper(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, seen := sections[name]; !seen {
			sections[name] = strings.TrimSpace(text[loc[1]:end])
		}
	}

	bundle := entity.SEOBundle{
		Titles:      rankedFromStrings(listLines(sections["TITLES"]), LegacyTitleScore),
		Description: sections["DESCRIPTION"],
		Tags:        rankedFromStrings(splitTags(sections["TAGS"]), LegacyTagScore),
		Thumbnails:  rankedFromStrings(listLines(sections["THUMBNAILS"]), LegacyThumbnailScore),
		Comment:     sections["COMMENT"],
	}
	if bundle.IsEmpty() {
		return entity.SEOBundle{}, false
	}
	return bundle, true
}

func listLines(block string) []string {
	if block == "" {
		return nil
	}
	lines := strings.Split(block, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(listPrefix.ReplaceAllString(l, ""))
		l = strings.Trim(l, `"`)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func splitTags(block string) []string {
	if block == "" {
		return nil
	}
	var out []string
	for _, line := range listLines(block) {
		for _, tag := range strings.Split(line, ",") {
			tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
			if tag != "" {
				out = append(out, tag)
			}
		}
	}
	return out
}
