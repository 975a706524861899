package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/domain/entity"
)

func completedGeneration(t *testing.T, f *fixture) *entity.Generation {
	t.Helper()
	run, err := f.orch.Start(context.Background(), "u1", baseConfig())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	outcome, err := f.orch.Execute(context.Background(), run)
	if err != nil || !outcome.Saved {
		t.Fatalf("Execute: %+v, %v", outcome, err)
	}
	return outcome.Generation
}

func TestRegenerateSplicesSection(t *testing.T) {
	f := newFixture(100)
	gen := completedGeneration(t, f)
	f.gen.replies[entity.StageMainContent] = func(*entity.GenerationRequest) (string, error) { return "fresh main content", nil }

	out, err := f.orch.Regenerate(context.Background(), "u1", gen.ID, entity.StageMainContent)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if !out.Debited || !out.Saved || out.Text != "fresh main content" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	want := "text of hook_intro\n\nfresh main content\n\ntext of demo_outro\n\ntext of production_notes"
	if out.Generation.Script != want {
		t.Fatalf("unexpected script:\n%s", out.Generation.Script)
	}
	if out.Generation.Cost != 20 {
		t.Fatalf("regeneration cost should accumulate, got %d", out.Generation.Cost)
	}
	if !strings.Contains(f.gen.request(entity.StageMainContent).UserPrompt, "text of hook_intro") {
		t.Fatalf("main content regeneration needs the hook as context")
	}

	debits := f.ledger.debitCalls()
	last := debits[len(debits)-1]
	if last.amount != RegenerationCost || last.txType != entity.TxDebitRegeneration || last.reference != gen.ID {
		t.Fatalf("unexpected regeneration debit: %+v", last)
	}

	saved, _ := f.orch.Get(context.Background(), "u1", gen.ID)
	if saved.Sections[entity.StageMainContent] != "fresh main content" || saved.Sections[entity.StageHookIntro] != "text of hook_intro" {
		t.Fatalf("saved sections not updated: %v", saved.Sections)
	}
}

func TestRegenerateRejectsNonScriptSections(t *testing.T) {
	f := newFixture(100)
	for _, stage := range []entity.Stage{entity.StageProductionNotes, entity.StageSEO, "bogus"} {
		if _, err := f.orch.Regenerate(context.Background(), "u1", "g1", stage); !errors.Is(err, ErrNotRegenerable) {
			t.Fatalf("%s: expected ErrNotRegenerable, got %v", stage, err)
		}
	}
}

func TestRegenerateUnknownGeneration(t *testing.T) {
	f := newFixture(100)
	if _, err := f.orch.Regenerate(context.Background(), "u1", "missing", entity.StageHookIntro); !errors.Is(err, ErrGenerationNotFound) {
		t.Fatalf("expected ErrGenerationNotFound, got %v", err)
	}
}

func TestRegenerateRequiresCredits(t *testing.T) {
	f := newFixture(10)
	gen := completedGeneration(t, f)
	before := len(f.gen.called())

	if _, err := f.orch.Regenerate(context.Background(), "u1", gen.ID, entity.StageHookIntro); !errors.Is(err, quota.ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if len(f.gen.called()) != before {
		t.Fatalf("no model call without credits")
	}
}

func TestRegenerateFailureKeepsOriginal(t *testing.T) {
	f := newFixture(100)
	gen := completedGeneration(t, f)
	f.gen.replies[entity.StageDemoOutro] = failWith("rate limited")
	debitsBefore := len(f.ledger.debitCalls())

	_, err := f.orch.Regenerate(context.Background(), "u1", gen.ID, entity.StageDemoOutro)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != entity.StageDemoOutro {
		t.Fatalf("expected stage error, got %v", err)
	}
	if len(f.ledger.debitCalls()) != debitsBefore {
		t.Fatalf("failed regeneration is not charged")
	}
	saved, _ := f.orch.Get(context.Background(), "u1", gen.ID)
	if saved.Script != gen.Script {
		t.Fatalf("saved script must be unchanged")
	}
}

func TestRegenerateDebitFailureReturnsText(t *testing.T) {
	f := newFixture(100)
	gen := completedGeneration(t, f)
	f.ledger.debitErr = errors.New("connection reset")

	out, err := f.orch.Regenerate(context.Background(), "u1", gen.ID, entity.StageHookIntro)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if out.Debited || out.Saved || out.Text == "" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestConcurrentRegenerationsKeepBothSections(t *testing.T) {
	f := newFixture(100)
	gen := completedGeneration(t, f)

	// 两次调用都进入模型后才放行，保证读取的是同一份旧记录
	var barrier sync.WaitGroup
	barrier.Add(2)
	wait := func() {
		barrier.Done()
		barrier.Wait()
	}
	f.gen.after[entity.StageHookIntro] = wait
	f.gen.after[entity.StageDemoOutro] = wait
	f.gen.replies[entity.StageHookIntro] = func(*entity.GenerationRequest) (string, error) { return "NEW HOOK", nil }
	f.gen.replies[entity.StageDemoOutro] = func(*entity.GenerationRequest) (string, error) { return "NEW DEMO", nil }

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, section := range []entity.Stage{entity.StageHookIntro, entity.StageDemoOutro} {
		wg.Add(1)
		go func(i int, section entity.Stage) {
			defer wg.Done()
			out, err := f.orch.Regenerate(context.Background(), "u1", gen.ID, section)
			if err == nil && !out.Saved {
				err = errors.New("not saved")
			}
			errs[i] = err
		}(i, section)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("Regenerate: %v", err)
		}
	}

	if n := len(f.ledger.debitCalls()); n != 3 {
		t.Fatalf("expected 1 run debit and 2 regeneration debits, got %d", n)
	}
	saved, _ := f.orch.Get(context.Background(), "u1", gen.ID)
	if saved.Sections[entity.StageHookIntro] != "NEW HOOK" || saved.Sections[entity.StageDemoOutro] != "NEW DEMO" {
		t.Fatalf("a paid section was lost: %v", saved.Sections)
	}
	if saved.Sections[entity.StageMainContent] != "text of main_content" {
		t.Fatalf("untouched section changed: %q", saved.Sections[entity.StageMainContent])
	}
	if saved.Cost != 30 {
		t.Fatalf("cost should include both regenerations, got %d", saved.Cost)
	}
}

func TestRegenerateSaveFailureStillReturnsText(t *testing.T) {
	f := newFixture(100)
	gen := completedGeneration(t, f)
	f.repo.updateErr = errors.New("deadlock detected")

	out, err := f.orch.Regenerate(context.Background(), "u1", gen.ID, entity.StageHookIntro)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if !out.Debited || out.Saved || out.Generation.Sections[entity.StageHookIntro] != out.Text {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
