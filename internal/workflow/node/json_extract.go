package node

import (
	"encoding/json"
	"strings"
)

// StripCodeFence 去掉模型输出外层的 ``` 或 ```json 围栏
func StripCodeFence(s string) string {
	raw := strings.TrimSpace(s)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```")
	if nl := strings.IndexByte(raw, '\n'); nl >= 0 {
		// 首行是语言标记（json / JSON / 空）
		if lang := strings.TrimSpace(raw[:nl]); !strings.ContainsAny(lang, "{[") {
			raw = raw[nl+1:]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

// ExtractJSONObject 截取第一个 '{' 到最后一个 '}' 之间的对象片段，找不到返回空串
func ExtractJSONObject(s string) string {
	return extractSpan(s, '{', '}')
}

// ExtractJSONValue 按先出现的定界符截取对象或数组
func ExtractJSONValue(s string) string {
	raw := strings.TrimSpace(s)
	objStart := strings.IndexByte(raw, '{')
	arrStart := strings.IndexByte(raw, '[')
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		return extractSpan(raw, '{', '}')
	case arrStart >= 0:
		return extractSpan(raw, '[', ']')
	default:
		return ""
	}
}

func extractSpan(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// IsValidJSON 判断片段能否完整解析
func IsValidJSON(s string) bool {
	return s != "" && json.Valid([]byte(s))
}
