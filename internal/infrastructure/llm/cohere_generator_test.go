package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	cohere "github.com/cohere-ai/cohere-go/v2"

	"scriptgen-api/internal/config"
	"scriptgen-api/internal/domain/entity"
)

func TestCohereGeneratorMapsRequest(t *testing.T) {
	var got *cohere.ChatRequest
	g := newCohereGenerator("cohere", config.ProviderConfig{Model: "command-r", MaxTokens: 500, Temperature: 0.3},
		func(_ context.Context, req *cohere.ChatRequest) (*cohere.NonStreamedChatResponse, error) {
			got = req
			return &cohere.NonStreamedChatResponse{Text: "[0:00] Hi there"}, nil
		})

	out, err := g.Generate(context.Background(), &entity.GenerationRequest{
		Stage:        entity.StageHookIntro,
		SystemPrompt: "you write scripts",
		UserPrompt:   "write the hook",
		Model:        "command-r-plus",
		Temperature:  0.8,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "[0:00] Hi there" {
		t.Fatalf("unexpected output %q", out)
	}
	if got.Message != "write the hook" || got.Preamble == nil || *got.Preamble != "you write scripts" {
		t.Fatalf("unexpected prompt mapping: %+v", got)
	}
	if *got.Model != "command-r-plus" {
		t.Fatalf("request model should win, got %s", *got.Model)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 500 {
		t.Fatalf("max tokens should fall back to provider config: %v", got.MaxTokens)
	}
	if got.Temperature == nil || *got.Temperature < 0.79 || *got.Temperature > 0.81 {
		t.Fatalf("unexpected temperature: %v", got.Temperature)
	}
}

func TestCohereGeneratorDefaultsToProviderModel(t *testing.T) {
	var got *cohere.ChatRequest
	g := newCohereGenerator("cohere", config.ProviderConfig{Model: "command-r"},
		func(_ context.Context, req *cohere.ChatRequest) (*cohere.NonStreamedChatResponse, error) {
			got = req
			return &cohere.NonStreamedChatResponse{Text: "ok"}, nil
		})

	if _, err := g.Generate(context.Background(), &entity.GenerationRequest{Stage: entity.StageSEO, UserPrompt: "x"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if *got.Model != "command-r" || got.Preamble != nil || got.MaxTokens != nil || got.Temperature != nil {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestCohereGeneratorErrors(t *testing.T) {
	boom := errors.New("429 too many requests")
	failing := newCohereGenerator("cohere", config.ProviderConfig{Model: "command-r"},
		func(context.Context, *cohere.ChatRequest) (*cohere.NonStreamedChatResponse, error) { return nil, boom })
	if _, err := failing.Generate(context.Background(), &entity.GenerationRequest{Stage: entity.StageSEO, UserPrompt: "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	blank := newCohereGenerator("cohere", config.ProviderConfig{Model: "command-r"},
		func(context.Context, *cohere.ChatRequest) (*cohere.NonStreamedChatResponse, error) {
			return &cohere.NonStreamedChatResponse{Text: "  "}, nil
		})
	if _, err := blank.Generate(context.Background(), &entity.GenerationRequest{Stage: entity.StageSEO, UserPrompt: "x"}); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty response error, got %v", err)
	}

	if _, err := blank.Generate(context.Background(), &entity.GenerationRequest{Stage: entity.StageSEO}); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
	if _, err := NewCohereGenerator("cohere", config.ProviderConfig{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestNewGeneratorSelectsByType(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "co",
		Providers: map[string]config.ProviderConfig{
			"co":     {Type: "cohere", APIKey: "k", Model: "command-r"},
			"openai": {APIKey: "k", Model: "gpt-4o"},
		},
	}}
	g, err := NewGenerator(cfg, NewEinoFactory(cfg))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, ok := g.(*CohereGenerator); !ok {
		t.Fatalf("expected cohere generator, got %T", g)
	}

	cfg.LLM.DefaultProvider = "openai"
	g, err = NewGenerator(cfg, NewEinoFactory(cfg))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, ok := g.(*CohereGenerator); ok {
		t.Fatalf("openai provider must not use cohere")
	}

	cfg.LLM.DefaultProvider = "missing"
	if _, err := NewGenerator(cfg, NewEinoFactory(cfg)); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
