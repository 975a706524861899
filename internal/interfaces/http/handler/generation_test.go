package handler

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"scriptgen-api/internal/application/generation"
	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/domain/entity"
)

func generationRouter(svc *fakeGenerationService, tr *fakeTranslations) *gin.Engine {
	h := NewGenerationHandler(svc, tr)
	r := newTestEngine()
	r.POST("/v1/generations", h.CreateGeneration)
	r.DELETE("/v1/generations/active", h.CancelActive)
	r.GET("/v1/generations", h.ListGenerations)
	r.GET("/v1/generations/:id", h.GetGeneration)
	r.POST("/v1/generations/:id/sections/:section/regenerate", h.RegenerateSection)
	r.POST("/v1/generations/:id/translations", h.TranslateGeneration)
	return r
}

var validGeneration = map[string]any{
	"topic":            "Build a REST API in Go",
	"duration_minutes": 10,
	"include_chapters": true,
}

func TestCreateGenerationStreamsResult(t *testing.T) {
	svc := &fakeGenerationService{
		run: &generation.Run{ID: "run-1", Cost: 25},
		outcome: &generation.Outcome{
			RunID:      "run-1",
			State:      generation.StateDone,
			Debited:    true,
			Saved:      true,
			Generation: &entity.Generation{ID: "run-1", Script: "[0:00] hello"},
		},
	}
	w := doJSON(t, generationRouter(svc, &fakeTranslations{}), http.MethodPost, "/v1/generations", validGeneration)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	body := w.Body.String()
	started := strings.Index(body, "event:started")
	result := strings.Index(body, "event:result")
	if started < 0 || result < started {
		t.Fatalf("expected started then result events, got %s", body)
	}
	if !strings.Contains(body, `"debited":true`) || !strings.Contains(body, `"cost":25`) {
		t.Fatalf("missing outcome fields: %s", body)
	}
	if !svc.gotConfig.IncludeChapters || svc.gotConfig.DurationMinutes != 10 {
		t.Fatalf("config not mapped: %+v", svc.gotConfig)
	}
}

func TestCreateGenerationStageFailure(t *testing.T) {
	stageErr := &generation.StageError{Stage: entity.StageMainContent, Err: errors.New("upstream 500")}
	svc := &fakeGenerationService{
		run:     &generation.Run{ID: "run-2"},
		outcome: &generation.Outcome{RunID: "run-2", State: generation.StateFailed},
		execErr: stageErr,
	}
	w := doJSON(t, generationRouter(svc, &fakeTranslations{}), http.MethodPost, "/v1/generations", validGeneration)

	body := w.Body.String()
	if !strings.Contains(body, "event:error") || !strings.Contains(body, `"stage":"main_content"`) {
		t.Fatalf("expected stage error event, got %s", body)
	}
	if strings.Contains(body, "event:result") {
		t.Fatalf("failed run must not emit result: %s", body)
	}
}

func TestCreateGenerationCancelled(t *testing.T) {
	svc := &fakeGenerationService{
		run:     &generation.Run{ID: "run-3"},
		outcome: &generation.Outcome{RunID: "run-3", State: generation.StateCancelled},
	}
	w := doJSON(t, generationRouter(svc, &fakeTranslations{}), http.MethodPost, "/v1/generations", validGeneration)
	if !strings.Contains(w.Body.String(), "event:cancelled") {
		t.Fatalf("expected cancelled event, got %s", w.Body.String())
	}
}

func TestCreateGenerationRejectedBeforeStream(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient", quota.InsufficientCreditsError{UserID: testUserID, Required: 35, Available: 10}, http.StatusPaymentRequired, "4002"},
		{"invalid config", generation.ErrInvalidConfig, http.StatusBadRequest, "1001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeGenerationService{startErr: tc.err}
			w := doJSON(t, generationRouter(svc, &fakeTranslations{}), http.MethodPost, "/v1/generations", validGeneration)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if strings.Contains(w.Body.String(), "event:") {
				t.Fatalf("no stream expected: %s", w.Body.String())
			}
			if got := decodeError(t, w).Error.ErrorCode; got != tc.code {
				t.Fatalf("error code = %q, want %q", got, tc.code)
			}
		})
	}
}

func TestCreateGenerationBindingError(t *testing.T) {
	w := doJSON(t, generationRouter(&fakeGenerationService{}, &fakeTranslations{}), http.MethodPost, "/v1/generations", map[string]any{"topic": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCancelActive(t *testing.T) {
	w := doJSON(t, generationRouter(&fakeGenerationService{}, &fakeTranslations{}), http.MethodDelete, "/v1/generations/active", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	w = doJSON(t, generationRouter(&fakeGenerationService{active: true}, &fakeTranslations{}), http.MethodDelete, "/v1/generations/active", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"cancelled":true`) {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestGetAndListGenerations(t *testing.T) {
	svc := &fakeGenerationService{getErr: generation.ErrGenerationNotFound}
	w := doJSON(t, generationRouter(svc, &fakeTranslations{}), http.MethodGet, "/v1/generations/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	svc = &fakeGenerationService{list: []*entity.Generation{{ID: "g1", Topic: "a"}, {ID: "g2", Topic: "b"}}}
	w = doJSON(t, generationRouter(svc, &fakeTranslations{}), http.MethodGet, "/v1/generations?page=1&page_size=1", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":2`) || !strings.Contains(w.Body.String(), `"total_pages":2`) {
		t.Fatalf("unexpected list response %s", w.Body.String())
	}
}

func TestRegenerateSection(t *testing.T) {
	svc := &fakeGenerationService{regen: &generation.RegenerateOutcome{
		Generation: &entity.Generation{ID: "g1", Script: "full script"},
		Section:    entity.StageDemoOutro,
		Text:       "new outro",
		Debited:    true,
		Saved:      true,
	}}
	r := generationRouter(svc, &fakeTranslations{})

	w := doJSON(t, r, http.MethodPost, "/v1/generations/g1/sections/demo_outro/regenerate", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "new outro") {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if svc.gotSection != entity.StageDemoOutro {
		t.Fatalf("section = %q", svc.gotSection)
	}

	for _, section := range []string{"seo", "bogus"} {
		w = doJSON(t, r, http.MethodPost, "/v1/generations/g1/sections/"+section+"/regenerate", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", section, w.Code)
		}
	}
}

func TestTranslateGeneration(t *testing.T) {
	w := doJSON(t, generationRouter(&fakeGenerationService{}, &fakeTranslations{text: "hola"}),
		http.MethodPost, "/v1/generations/g1/translations", map[string]string{"target_language": "Spanish"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "hola") {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, generationRouter(&fakeGenerationService{}, &fakeTranslations{err: errors.New("llm down")}),
		http.MethodPost, "/v1/generations/g1/translations", map[string]string{"target_language": "Spanish"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}

	w = doJSON(t, generationRouter(&fakeGenerationService{}, &fakeTranslations{err: generation.ErrGenerationNotFound}),
		http.MethodPost, "/v1/generations/g1/translations", map[string]string{"target_language": "Spanish"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
