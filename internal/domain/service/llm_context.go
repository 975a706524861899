// Package service 放置跨层共享的领域服务辅助
package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyStage    llmCtxKey = "llm_stage"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
)

// WithStage 标记当前 LLM 调用所属的生成阶段
func WithStage(ctx context.Context, stage string) context.Context {
	if ctx == nil {
		return nil
	}
	s := strings.TrimSpace(stage)
	if s == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyStage, s)
}

// WithProvider 标记当前 LLM 调用使用的提供商
func WithProvider(ctx context.Context, provider string) context.Context {
	if ctx == nil {
		return nil
	}
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyProvider, p)
}

// WithStageProvider 同时标记阶段与提供商
func WithStageProvider(ctx context.Context, stage, provider string) context.Context {
	return WithProvider(WithStage(ctx, stage), provider)
}

func StageFromContext(ctx context.Context) string {
	return valueOrUnknown(ctx, llmCtxKeyStage)
}

func ProviderFromContext(ctx context.Context) string {
	return valueOrUnknown(ctx, llmCtxKeyProvider)
}

func valueOrUnknown(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return "unknown"
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return strings.TrimSpace(s)
}
