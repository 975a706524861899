// Package translate 按段落分块翻译长文本
package translate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize 单块字符数软上限
const DefaultChunkSize = 2400

// ChunkSeparator 段落与分块之间的分隔符
const ChunkSeparator = "\n\n"

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n+`)

// Paragraphs 按空行切分段落，丢弃空段
func Paragraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	parts := paragraphBreak.Split(normalized, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitChunks 贪心合并段落，超长段落整体保留，不在段内切分
func SplitChunks(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkSize
	}
	var (
		chunks  []string
		current []string
		size    int
	)
	for _, p := range Paragraphs(text) {
		n := utf8.RuneCountInString(p)
		next := size + n
		if len(current) > 0 {
			next += len(ChunkSeparator)
		}
		if next > limit && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ChunkSeparator))
			current, size = nil, 0
			next = n
		}
		current = append(current, p)
		size = next
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ChunkSeparator))
	}
	return chunks
}
