// Package generation 编排脚本段落与衍生物料的分阶段生成
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/application/timing"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/internal/workflow/output"
	"scriptgen-api/internal/workflow/port"
	"scriptgen-api/internal/workflow/prompt"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/metrics"
	"scriptgen-api/pkg/tracer"
)

// Ledger 编排器对额度账本的依赖
type Ledger interface {
	Require(ctx context.Context, userID string, amount int64) (quota.Availability, error)
	Debit(ctx context.Context, userID string, amount int64, txType entity.TransactionType, reference string) (*quota.DebitResult, error)
}

// GenerationSink 生成结果保存后的下游投递（归档、事件）
type GenerationSink interface {
	Name() string
	Store(ctx context.Context, gen *entity.Generation) error
}

// Options 编排参数
type Options struct {
	MaxParallelArtifacts int
	StageTimeout         time.Duration
	EventBuffer          int
}

// Outcome 运行结果，Generation 在 Done 状态下总是非空
type Outcome struct {
	RunID      string             `json:"run_id"`
	State      State              `json:"state"`
	Generation *entity.Generation `json:"generation,omitempty"`
	Debited    bool               `json:"debited"`
	Saved      bool               `json:"saved"`
}

// Orchestrator 生成流水线编排器
type Orchestrator struct {
	builder  *prompt.Builder
	gen      port.Generator
	ledger   Ledger
	repo     repository.GenerationRepository
	tx       repository.Transactor
	registry *RunRegistry
	sinks    []GenerationSink
	opts     Options
	now      func() time.Time
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	builder *prompt.Builder,
	gen port.Generator,
	ledger Ledger,
	repo repository.GenerationRepository,
	tx repository.Transactor,
	registry *RunRegistry,
	opts Options,
	sinks ...GenerationSink,
) *Orchestrator {
	if opts.MaxParallelArtifacts <= 0 {
		opts.MaxParallelArtifacts = 4
	}
	return &Orchestrator{
		builder:  builder,
		gen:      gen,
		ledger:   ledger,
		repo:     repo,
		tx:       tx,
		registry: registry,
		sinks:    sinks,
		opts:     opts,
		now:      time.Now,
	}
}

// Start 校验配置并预检额度，登记新运行；同一用户的旧运行会被取消
func (o *Orchestrator) Start(ctx context.Context, userID string, cfg entity.VideoConfig) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.Language = cfg.Language.Normalize()

	cost := RequiredCost(cfg)
	if _, err := o.ledger.Require(ctx, userID, cost); err != nil {
		return nil, err
	}

	run := newRun(userID, cfg, timing.Allocate(cfg.DurationMinutes), cost, o.opts.EventBuffer)
	if prev := o.registry.Register(run); prev != nil {
		logger.Info(ctx, "previous generation run cancelled", "previous_run_id", prev.ID, "run_id", run.ID)
	}
	logger.Info(ctx, "generation run registered",
		"run_id", run.ID,
		"cost", cost,
		"duration_minutes", cfg.DurationMinutes,
		"optional_artifacts", len(cfg.OptionalArtifacts()),
	)
	return run, nil
}

// Cancel 取消用户当前的活跃运行
func (o *Orchestrator) Cancel(userID string) bool {
	return o.registry.Cancel(userID)
}

// Execute 驱动状态机直至终止状态；取消不视为错误
func (o *Orchestrator) Execute(ctx context.Context, run *Run) (*Outcome, error) {
	if !run.markExecuted() {
		return nil, ErrRunFinished
	}
	ctx = logger.WithContext(ctx, logger.RunIDKey, run.ID)
	ctx = logger.WithContext(ctx, logger.UserIDKey, run.UserID)
	ctx, span := tracer.Start(ctx, "generation.Orchestrator.Execute")
	defer span.End()

	// 调用方断开即视为取消
	stop := context.AfterFunc(ctx, run.Cancel)
	defer stop()
	defer o.registry.Remove(run)
	defer run.closeEvents()

	outcome, err := o.execute(ctx, run)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	run.setState(outcome.State)
	switch outcome.State {
	case StateDone:
		run.publish("", EventCompleted, "")
	case StateFailed:
		run.publish("", EventFailed, err.Error())
	case StateCancelled:
		run.publish("", EventCancelled, "")
	}
	metrics.GenerationRunsTotal.WithLabelValues(string(outcome.State)).Inc()
	metrics.GenerationRunDuration.Observe(time.Since(run.StartedAt).Seconds())
	return outcome, err
}

func (o *Orchestrator) execute(ctx context.Context, run *Run) (*Outcome, error) {
	var asm entity.ScriptAssembly

	for _, stage := range entity.ScriptStages {
		if run.Cancelled() {
			return o.cancelled(ctx, run, stage), nil
		}
		run.setState(State(stage))
		run.publish(stage, EventStarted, "")

		in := prompt.StageInput{Config: run.Config, Timing: run.Timing}
		if stage == entity.StageProductionNotes {
			in.Text = asm.Text()
		} else {
			in.PriorText = asm.PriorText(stage)
		}

		raw, err := o.dispatch(ctx, stage, in)
		if run.Cancelled() {
			return o.cancelled(ctx, run, stage), nil
		}
		text := output.PlainText(raw)
		if err == nil && text == "" {
			err = errors.New("empty output")
		}
		if err != nil {
			run.publish(stage, EventFailed, err.Error())
			logger.Error(ctx, "critical stage failed, aborting run", err, "stage", string(stage))
			return &Outcome{RunID: run.ID, State: StateFailed}, &StageError{Stage: stage, Err: err}
		}
		_ = asm.Set(stage, text)
		run.publish(stage, EventCompleted, "")
	}

	if run.Cancelled() {
		return o.cancelled(ctx, run, entity.StageSEO), nil
	}
	run.setState(StateParallelArtifacts)
	set := o.runArtifacts(ctx, run, asm.Text())

	if run.Config.IncludeShorts {
		if run.Cancelled() {
			return o.cancelled(ctx, run, entity.StageShorts), nil
		}
		run.setState(StateShorts)
		res := o.runArtifact(ctx, run, entity.StageShorts, asm.Text())
		res.applyTo(&set)
	}
	if run.Cancelled() {
		return o.cancelled(ctx, run, ""), nil
	}

	run.setState(StateSettling)
	gen := o.assemble(run, asm, set)
	debited, saved := o.settle(ctx, run, gen)
	return &Outcome{RunID: run.ID, State: StateDone, Generation: gen, Debited: debited, Saved: saved}, nil
}

func (o *Orchestrator) cancelled(ctx context.Context, run *Run, before entity.Stage) *Outcome {
	logger.Info(ctx, "generation run cancelled", "before_stage", string(before))
	return &Outcome{RunID: run.ID, State: StateCancelled}
}

type artifactResult struct {
	stage  entity.Stage
	status entity.ArtifactStatus
	apply  func(set *entity.ArtifactSet)
}

func (r artifactResult) applyTo(set *entity.ArtifactSet) {
	set.Status[r.stage] = r.status
	if r.apply != nil {
		r.apply(set)
	}
}

// runArtifacts 并发生成 SEO 与已启用的配图、章节、空镜；单项失败只影响自身
func (o *Orchestrator) runArtifacts(ctx context.Context, run *Run, script string) entity.ArtifactSet {
	set := entity.ArtifactSet{Status: make(map[entity.Stage]entity.ArtifactStatus, 5)}
	for _, stage := range []entity.Stage{entity.StageImagePrompts, entity.StageChapters, entity.StageBRoll, entity.StageShorts} {
		if !run.Config.Enabled(stage) {
			set.Status[stage] = entity.ArtifactDisabled
		}
	}

	stages := []entity.Stage{entity.StageSEO}
	for _, stage := range []entity.Stage{entity.StageImagePrompts, entity.StageChapters, entity.StageBRoll} {
		if run.Config.Enabled(stage) {
			stages = append(stages, stage)
		}
	}

	// 每个任务只写自己的槽位
	results := make([]artifactResult, len(stages))
	var g errgroup.Group
	g.SetLimit(o.opts.MaxParallelArtifacts)
	for i, stage := range stages {
		g.Go(func() error {
			results[i] = o.runArtifact(ctx, run, stage, script)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		r.applyTo(&set)
	}
	return set
}

func (o *Orchestrator) runArtifact(ctx context.Context, run *Run, stage entity.Stage, script string) artifactResult {
	if run.Cancelled() {
		return artifactResult{stage: stage, status: entity.ArtifactSkipped}
	}
	run.publish(stage, EventStarted, "")

	raw, err := o.dispatch(ctx, stage, prompt.StageInput{Config: run.Config, Timing: run.Timing, Text: script})
	if err != nil {
		logger.Warn(ctx, "artifact stage failed, continuing without it", "stage", string(stage), "error", err.Error())
		run.publish(stage, EventDegraded, err.Error())
		return artifactResult{stage: stage, status: entity.ArtifactFailed}
	}

	res := artifactResult{stage: stage, status: entity.ArtifactSucceeded}
	switch stage {
	case entity.StageSEO:
		bundle := output.SEO(ctx, raw).Value
		res.apply = func(set *entity.ArtifactSet) { set.SEO = &bundle }
	case entity.StageImagePrompts:
		items := output.ImagePrompts(ctx, raw).Value
		res.apply = func(set *entity.ArtifactSet) { set.ImagePrompts = items }
	case entity.StageChapters:
		items := output.Chapters(ctx, raw).Value
		res.apply = func(set *entity.ArtifactSet) { set.Chapters = items }
	case entity.StageBRoll:
		items := output.BRoll(ctx, raw).Value
		res.apply = func(set *entity.ArtifactSet) { set.BRoll = items }
	case entity.StageShorts:
		items := output.Shorts(ctx, raw).Value
		res.apply = func(set *entity.ArtifactSet) { set.Shorts = items }
	}
	run.publish(stage, EventCompleted, "")
	return res
}

// dispatch 构造请求并调用生成服务；调用在脱离调用方取消的 context 上执行
func (o *Orchestrator) dispatch(ctx context.Context, stage entity.Stage, in prompt.StageInput) (string, error) {
	req, err := o.builder.Build(ctx, stage, in)
	if err != nil {
		return "", err
	}

	callCtx := context.WithoutCancel(ctx)
	if o.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, o.opts.StageTimeout)
		defer cancel()
	}
	callCtx = logger.WithContext(callCtx, logger.StageKey, string(stage))
	callCtx, span := tracer.Start(callCtx, "generation.stage."+string(stage))
	defer span.End()

	start := o.now()
	raw, err := o.gen.Generate(callCtx, req)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.GenerationStageTotal.WithLabelValues(string(stage), status).Inc()
	logger.Debug(callCtx, "stage call finished",
		"model", req.Model,
		"status", status,
		"duration_ms", o.now().Sub(start).Milliseconds(),
	)
	return raw, err
}

func (o *Orchestrator) assemble(run *Run, asm entity.ScriptAssembly, set entity.ArtifactSet) *entity.Generation {
	now := o.now()
	gen := &entity.Generation{
		ID:              run.ID,
		UserID:          run.UserID,
		Topic:           run.Config.Topic,
		Language:        run.Config.Language,
		DurationMinutes: run.Config.DurationMinutes,
		Config:          run.Config,
		Timing:          run.Timing,
		Cost:            run.Cost,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	gen.ApplyAssembly(asm)
	gen.ApplyArtifacts(set)
	return gen
}

// settle 先扣费后保存；任一步失败只记录，不撤回已生成内容
func (o *Orchestrator) settle(ctx context.Context, run *Run, gen *entity.Generation) (debited, saved bool) {
	ctx = context.WithoutCancel(ctx)

	if _, err := o.ledger.Debit(ctx, run.UserID, run.Cost, entity.TxDebitGeneration, run.ID); err != nil {
		metrics.LedgerBookkeepingFailures.WithLabelValues("debit").Inc()
		logger.Error(ctx, "failed to debit completed generation", err, "cost", run.Cost)
		return false, false
	}

	if err := o.repo.Create(ctx, gen); err != nil {
		metrics.LedgerBookkeepingFailures.WithLabelValues("persist").Inc()
		logger.Error(ctx, "failed to save completed generation", err, "generation_id", gen.ID)
		return true, false
	}

	o.notify(ctx, gen)
	logger.Info(ctx, "generation run settled", "generation_id", gen.ID, "cost", run.Cost)
	return true, true
}

func (o *Orchestrator) notify(ctx context.Context, gen *entity.Generation) {
	for _, sink := range o.sinks {
		if err := sink.Store(ctx, gen); err != nil {
			metrics.LedgerBookkeepingFailures.WithLabelValues(sink.Name()).Inc()
			logger.Warn(ctx, "generation sink failed", "sink", sink.Name(), "generation_id", gen.ID, "error", err.Error())
		}
	}
}

// Get 查询用户的一次生成
func (o *Orchestrator) Get(ctx context.Context, userID, id string) (*entity.Generation, error) {
	gen, err := o.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, ErrGenerationNotFound
	}
	return gen, nil
}

// List 分页查询生成历史
func (o *Orchestrator) List(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Generation], error) {
	return o.repo.ListByUser(ctx, userID, pagination)
}
