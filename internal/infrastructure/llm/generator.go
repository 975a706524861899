package llm

import (
	"fmt"
	"strings"

	"scriptgen-api/internal/config"
	"scriptgen-api/internal/workflow/chain"
	"scriptgen-api/internal/workflow/port"
)

// NewGenerator 按默认提供商的 type 选择生成器：cohere 走 Cohere SDK，其余走 Eino OpenAI 链
func NewGenerator(cfg *config.Config, factory *EinoFactory) (port.Generator, error) {
	name := cfg.LLM.DefaultProvider
	providerCfg, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	if strings.EqualFold(providerCfg.Type, ProviderTypeCohere) {
		return NewCohereGenerator(name, providerCfg)
	}
	return chain.NewStageChain(factory, name), nil
}
