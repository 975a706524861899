package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/workflow/prompt"
)

func TestSplitChunksGreedy(t *testing.T) {
	text := "aaaa\n\nbbbb\n\ncccc\n\ndddd"
	chunks := SplitChunks(text, 10)
	want := []string{"aaaa\n\nbbbb", "cccc\n\ndddd"}
	if fmt.Sprint(chunks) != fmt.Sprint(want) {
		t.Fatalf("SplitChunks = %q, want %q", chunks, want)
	}
}

func TestSplitChunksKeepsLongParagraphWhole(t *testing.T) {
	long := strings.Repeat("x", 30)
	chunks := SplitChunks("short\n\n"+long+"\n\ntail", 10)
	if len(chunks) != 3 || chunks[1] != long {
		t.Fatalf("long paragraph must stay whole: %q", chunks)
	}
}

func TestSplitChunksPreservesParagraphOrder(t *testing.T) {
	var paras []string
	for i := 0; i < 40; i++ {
		paras = append(paras, fmt.Sprintf("[%d:00] paragraph %d %s", i, i, strings.Repeat("word ", i%7*20)))
	}
	text := strings.Join(paras, "\n\n \n")

	chunks := SplitChunks(text, 300)
	var rejoined []string
	for _, c := range chunks {
		if utf8.RuneCountInString(c) > 300 && strings.Contains(c, ChunkSeparator) {
			t.Fatalf("multi-paragraph chunk exceeds limit: %d", utf8.RuneCountInString(c))
		}
		rejoined = append(rejoined, Paragraphs(c)...)
	}
	want := Paragraphs(text)
	if fmt.Sprint(rejoined) != fmt.Sprint(want) {
		t.Fatalf("paragraph order changed")
	}
}

func TestSplitChunksEmpty(t *testing.T) {
	if got := SplitChunks(" \n\n \r\n", 100); len(got) != 0 {
		t.Fatalf("expected no chunks, got %q", got)
	}
}

type fakeGenerator struct {
	calls   []*entity.GenerationRequest
	failAt  int
	failErr error
}

func (g *fakeGenerator) Generate(_ context.Context, req *entity.GenerationRequest) (string, error) {
	g.calls = append(g.calls, req)
	if g.failAt > 0 && len(g.calls) == g.failAt {
		return "", g.failErr
	}
	return "  ES(" + req.UserPrompt + ")  ", nil
}

func newTranslator(gen *fakeGenerator, size int) *Translator {
	return NewTranslator(gen, prompt.NewBuilder(prompt.ModelSet{Primary: "primary"}, 0), size)
}

func TestTranslateJoinsChunksInOrder(t *testing.T) {
	gen := &fakeGenerator{}
	out, err := newTranslator(gen, 10).Translate(context.Background(), "aaaa\n\nbbbb\n\ncccc", "Spanish")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("expected 2 chunk calls, got %d", len(gen.calls))
	}
	if gen.calls[0].Stage != entity.StageTranslate || !strings.Contains(gen.calls[0].SystemPrompt, "Spanish") {
		t.Fatalf("unexpected request: %+v", gen.calls[0])
	}
	want := "ES(aaaa\n\nbbbb)" + ChunkSeparator + "ES(cccc)"
	if out != want {
		t.Fatalf("Translate = %q, want %q", out, want)
	}
}

func TestTranslateAbortsOnChunkFailure(t *testing.T) {
	boom := errors.New("provider timeout")
	gen := &fakeGenerator{failAt: 2, failErr: boom}
	out, err := newTranslator(gen, 5).Translate(context.Background(), "one\n\ntwo\n\nthree", "Hindi")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "chunk 2 of 3") {
		t.Fatalf("error should name the chunk: %v", err)
	}
	if out != "" {
		t.Fatalf("no partial translation may be returned, got %q", out)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("translation should stop at the failing chunk, got %d calls", len(gen.calls))
	}
}

func TestTranslateEmptyInputAndMissingLanguage(t *testing.T) {
	gen := &fakeGenerator{}
	tr := newTranslator(gen, 0)
	if out, err := tr.Translate(context.Background(), "   ", "French"); err != nil || out != "" {
		t.Fatalf("empty input: %q, %v", out, err)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("empty input must not call the generator")
	}
	if _, err := tr.Translate(context.Background(), "hello", " "); !errors.Is(err, prompt.ErrMissingContext) {
		t.Fatalf("expected ErrMissingContext, got %v", err)
	}
}
