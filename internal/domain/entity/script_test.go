package entity

import "testing"

func fullAssembly(t *testing.T) ScriptAssembly {
	t.Helper()
	var a ScriptAssembly
	for _, st := range ScriptStages {
		if err := a.Set(st, "text of "+string(st)); err != nil {
			t.Fatalf("Set(%s): %v", st, err)
		}
	}
	return a
}

func TestScriptAssemblyText(t *testing.T) {
	a := fullAssembly(t)
	want := "text of hook_intro\n\ntext of main_content\n\ntext of demo_outro\n\ntext of production_notes"
	if got := a.Text(); got != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", got, want)
	}
}

func TestScriptAssemblySpliceRoundTrip(t *testing.T) {
	for _, target := range RegenerableStages {
		t.Run(string(target), func(t *testing.T) {
			before := fullAssembly(t)
			after, err := before.Splice(target, "regenerated\n\nwith two paragraphs")
			if err != nil {
				t.Fatalf("Splice: %v", err)
			}
			if got := after.Section(target); got != "regenerated\n\nwith two paragraphs" {
				t.Fatalf("unexpected spliced section: %q", got)
			}
			for _, st := range ScriptStages {
				if st == target {
					continue
				}
				if after.Section(st) != before.Section(st) {
					t.Fatalf("section %s changed: %q -> %q", st, before.Section(st), after.Section(st))
				}
			}
			if before.Section(target) != "text of "+string(target) {
				t.Fatalf("original assembly mutated")
			}

			restored := AssemblyFromSections(after.Sections())
			if restored.Section(target) != after.Section(target) {
				t.Fatalf("persisted round trip lost section %s", target)
			}
		})
	}
}

func TestScriptAssemblyRejectsArtifactStage(t *testing.T) {
	var a ScriptAssembly
	if err := a.Set(StageSEO, "x"); err == nil {
		t.Fatalf("expected error for non-section stage")
	}
}

func TestScriptAssemblyPriorText(t *testing.T) {
	a := fullAssembly(t)
	if got := a.PriorText(StageHookIntro); got != "" {
		t.Fatalf("hook has no prior text, got %q", got)
	}
	if got := a.PriorText(StageDemoOutro); got != "text of hook_intro\n\ntext of main_content" {
		t.Fatalf("unexpected prior text: %q", got)
	}
}
