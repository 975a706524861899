package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scriptgen-api/internal/config"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/service"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/metrics"
)

// ProviderTypeCohere Cohere 协议提供商
const ProviderTypeCohere = "cohere"

type cohereChatFunc func(ctx context.Context, req *cohere.ChatRequest) (*cohere.NonStreamedChatResponse, error)

// CohereGenerator 基于 Cohere Chat API 的生成器
type CohereGenerator struct {
	name string
	cfg  config.ProviderConfig
	chat cohereChatFunc
}

// NewCohereGenerator 按提供商配置创建 Cohere 生成器
func NewCohereGenerator(name string, cfg config.ProviderConfig) (*CohereGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider %s: cohere api key is empty", name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	var client *cohereclient.Client
	if cfg.BaseURL != "" {
		client = cohereclient.NewClient(
			cohereclient.WithToken(cfg.APIKey),
			cohereclient.WithHTTPClient(httpClient),
			cohereclient.WithBaseURL(cfg.BaseURL),
		)
	} else {
		client = cohereclient.NewClient(
			cohereclient.WithToken(cfg.APIKey),
			cohereclient.WithHTTPClient(httpClient),
		)
	}
	return newCohereGenerator(name, cfg, func(ctx context.Context, req *cohere.ChatRequest) (*cohere.NonStreamedChatResponse, error) {
		return client.Chat(ctx, req)
	}), nil
}

func newCohereGenerator(name string, cfg config.ProviderConfig, chat cohereChatFunc) *CohereGenerator {
	return &CohereGenerator{name: name, cfg: cfg, chat: chat}
}

// Generate 执行一次 Chat 调用，SystemPrompt 作为 preamble
func (g *CohereGenerator) Generate(ctx context.Context, req *entity.GenerationRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("generation request is nil")
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		return "", fmt.Errorf("user prompt is empty for stage %s", req.Stage)
	}

	chatReq := g.buildRequest(req)
	modelName := *chatReq.Model

	ctx = service.WithStageProvider(ctx, string(req.Stage), g.name)
	ctx, span := otel.Tracer("cohere").Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("scriptgen.stage", string(req.Stage)),
		attribute.String("llm.provider", g.name),
		attribute.String("llm.model", modelName),
	))
	defer span.End()

	start := time.Now()
	resp, err := g.chat(ctx, chatReq)
	metrics.LLMCallDuration.WithLabelValues(g.name, modelName).Observe(time.Since(start).Seconds())
	if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
		err = fmt.Errorf("empty llm response")
	}
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(g.name, modelName, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("cohere chat (%s): %w", req.Stage, err)
	}

	metrics.LLMCallTotal.WithLabelValues(g.name, modelName, "success").Inc()
	if in, out, ok := billedTokens(resp); ok {
		metrics.LLMTokensUsed.WithLabelValues(g.name, modelName, "prompt").Add(in)
		metrics.LLMTokensUsed.WithLabelValues(g.name, modelName, "completion").Add(out)
		logger.Debug(ctx, "llm call finished",
			"stage", string(req.Stage),
			"model", modelName,
			"prompt_tokens", int(in),
			"completion_tokens", int(out),
		)
	}
	return resp.Text, nil
}

func (g *CohereGenerator) buildRequest(req *entity.GenerationRequest) *cohere.ChatRequest {
	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = g.cfg.Model
	}
	chatReq := &cohere.ChatRequest{
		Message: req.UserPrompt,
		Model:   &modelName,
	}
	if s := strings.TrimSpace(req.SystemPrompt); s != "" {
		chatReq.Preamble = &s
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}
	if maxTokens > 0 {
		chatReq.MaxTokens = &maxTokens
	}

	temperature := float64(req.Temperature)
	if temperature <= 0 {
		temperature = g.cfg.Temperature
	}
	if temperature > 0 {
		chatReq.Temperature = &temperature
	}
	return chatReq
}

func billedTokens(resp *cohere.NonStreamedChatResponse) (float64, float64, bool) {
	if resp == nil || resp.Meta == nil || resp.Meta.BilledUnits == nil {
		return 0, 0, false
	}
	var in, out float64
	if v := resp.Meta.BilledUnits.InputTokens; v != nil {
		in = *v
	}
	if v := resp.Meta.BilledUnits.OutputTokens; v != nil {
		out = *v
	}
	return in, out, true
}
