// Package chain 用 Eino compose 编排单阶段的模型调用
package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"scriptgen-api/internal/domain/entity"
	llmctx "scriptgen-api/internal/domain/service"
	wfnode "scriptgen-api/internal/workflow/node"
	workflowport "scriptgen-api/internal/workflow/port"
	"scriptgen-api/pkg/logger"
)

// StageChain 将 GenerationRequest 交给 ChatModel 并返回生成文本
type StageChain struct {
	factory  workflowport.ChatModelFactory
	provider string

	chainOnce sync.Once
	chain     compose.Runnable[*entity.GenerationRequest, string]
	chainErr  error
}

var _ workflowport.Generator = (*StageChain)(nil)

// NewStageChain 创建阶段链，provider 为空时使用工厂默认提供商
func NewStageChain(factory workflowport.ChatModelFactory, provider string) *StageChain {
	return &StageChain{factory: factory, provider: strings.TrimSpace(provider)}
}

// Generate 执行一次生成调用
func (c *StageChain) Generate(ctx context.Context, req *entity.GenerationRequest) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if req == nil {
		return "", fmt.Errorf("generation request is nil")
	}
	chain, err := c.getChain()
	if err != nil {
		return "", err
	}
	return chain.Invoke(ctx, req)
}

type stageChainState struct {
	Req      *entity.GenerationRequest
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *StageChain) getChain() (compose.Runnable[*entity.GenerationRequest, string], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *StageChain) buildChain(ctx context.Context) (compose.Runnable[*entity.GenerationRequest, string], error) {
	chain := compose.NewChain[*entity.GenerationRequest, string]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, req *entity.GenerationRequest) (*stageChainState, error) {
			if strings.TrimSpace(req.UserPrompt) == "" {
				return nil, fmt.Errorf("user prompt is empty for stage %s", req.Stage)
			}
			msgs := make([]*schema.Message, 0, 2)
			if s := strings.TrimSpace(req.SystemPrompt); s != "" {
				msgs = append(msgs, schema.SystemMessage(s))
			}
			msgs = append(msgs, schema.UserMessage(req.UserPrompt))
			return &stageChainState{Req: req, Messages: msgs}, nil
		}),
		compose.WithNodeName("stage.messages"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *stageChainState) (*stageChainState, error) {
			ctx = llmctx.WithStageProvider(ctx, string(st.Req.Stage), c.providerName())
			chatModel, err := c.factory.Get(ctx, c.provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildModelOptions(st.Req, st.Req.StructuredOutput)...)
			if err != nil && st.Req.StructuredOutput && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_object not supported, fallback to prompt-only",
					"stage", string(st.Req.Stage),
					"model", st.Req.Model,
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildModelOptions(st.Req, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("stage.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *stageChainState) (string, error) {
			if st == nil || st.OutMsg == nil {
				return "", fmt.Errorf("state is nil")
			}
			return st.OutMsg.Content, nil
		}),
		compose.WithNodeName("stage.finalize"),
	)

	return chain.Compile(ctx)
}

func (c *StageChain) providerName() string {
	if c.provider != "" {
		return c.provider
	}
	if d, ok := c.factory.(interface{ DefaultProvider() string }); ok {
		return d.DefaultProvider()
	}
	return ""
}

func buildModelOptions(req *entity.GenerationRequest, jsonMode bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(req.Temperature))
	}
	if req.MaxOutputTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxOutputTokens))
	}
	if m := strings.TrimSpace(req.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if jsonMode {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}))
	}
	return opts
}
