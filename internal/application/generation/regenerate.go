package generation

import (
	"context"
	"errors"
	"fmt"

	"scriptgen-api/internal/application/timing"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/internal/workflow/output"
	"scriptgen-api/internal/workflow/prompt"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/metrics"
)

// RegenerateOutcome 单段重新生成结果
type RegenerateOutcome struct {
	Generation *entity.Generation `json:"generation"`
	Section    entity.Stage       `json:"section"`
	Text       string             `json:"text"`
	Debited    bool               `json:"debited"`
	Saved      bool               `json:"saved"`
}

// Regenerate 重新生成一个关键路径段落并拼回原位，固定扣费
func (o *Orchestrator) Regenerate(ctx context.Context, userID, generationID string, section entity.Stage) (*RegenerateOutcome, error) {
	if !section.IsRegenerable() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegenerable, section)
	}
	gen, err := o.Get(ctx, userID, generationID)
	if err != nil {
		return nil, err
	}
	if _, err := o.ledger.Require(ctx, userID, RegenerationCost); err != nil {
		return nil, err
	}

	windows := gen.Timing
	if windows.Total() == 0 {
		windows = timing.Allocate(gen.DurationMinutes)
	}
	asm := gen.Assembly()

	raw, err := o.dispatch(ctx, section, prompt.StageInput{
		Config:    gen.Config,
		Timing:    windows,
		PriorText: asm.PriorText(section),
	})
	text := output.PlainText(raw)
	if err == nil && text == "" {
		err = errors.New("empty output")
	}
	if err != nil {
		logger.Error(ctx, "section regeneration failed", err, "generation_id", generationID, "section", string(section))
		return nil, &StageError{Stage: section, Err: err}
	}

	updated, err := asm.Splice(section, text)
	if err != nil {
		return nil, err
	}
	gen.ApplyAssembly(updated)
	gen.UpdatedAt = o.now()

	out := &RegenerateOutcome{Generation: gen, Section: section, Text: text}
	ctx = context.WithoutCancel(ctx)

	if _, err := o.ledger.Debit(ctx, userID, RegenerationCost, entity.TxDebitRegeneration, generationID); err != nil {
		metrics.LedgerBookkeepingFailures.WithLabelValues("debit").Inc()
		logger.Error(ctx, "failed to debit regeneration", err, "generation_id", generationID)
		return out, nil
	}
	out.Debited = true
	gen.Cost += RegenerationCost

	// 生成期间其他段落可能已被并发修改，在行锁下基于最新记录拼接
	saved, err := modifyGeneration(ctx, o.tx, o.repo, userID, generationID, func(cur *entity.Generation) error {
		spliced, err := cur.Assembly().Splice(section, text)
		if err != nil {
			return err
		}
		cur.ApplyAssembly(spliced)
		cur.Cost += RegenerationCost
		cur.UpdatedAt = o.now()
		return nil
	})
	if err != nil {
		metrics.LedgerBookkeepingFailures.WithLabelValues("persist").Inc()
		logger.Error(ctx, "failed to save regenerated section", err, "generation_id", generationID)
		return out, nil
	}
	out.Generation = saved
	out.Saved = true
	o.notify(ctx, saved)

	logger.Info(ctx, "section regenerated", "generation_id", generationID, "section", string(section))
	return out, nil
}

// modifyGeneration 在事务内锁定最新记录，交给 fn 修改后写回
func modifyGeneration(
	ctx context.Context,
	tx repository.Transactor,
	repo repository.GenerationRepository,
	userID, id string,
	fn func(*entity.Generation) error,
) (*entity.Generation, error) {
	var out *entity.Generation
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		gen, err := repo.GetForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if gen == nil {
			return ErrGenerationNotFound
		}
		if err := fn(gen); err != nil {
			return err
		}
		if err := repo.Update(ctx, gen); err != nil {
			return err
		}
		out = gen
		return nil
	})
	return out, err
}
