package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/config"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/internal/infrastructure/messaging"
	"scriptgen-api/internal/interfaces/http/handler"
	"scriptgen-api/internal/interfaces/http/middleware"
	"scriptgen-api/pkg/utils"
)

type stubLedger struct{}

func (stubLedger) CheckAvailable(_ context.Context, userID string) (quota.Availability, error) {
	return quota.Availability{UserID: userID, FreeCap: 50, FreeRemaining: 50, Available: 50}, nil
}

func (stubLedger) History(context.Context, string, repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	return &repository.PagedResult[*entity.CreditTransaction]{}, nil
}

type stubPublisher struct{ calls int }

func (p *stubPublisher) PublishPaymentEvent(context.Context, *messaging.PaymentEventMessage, string) (string, error) {
	p.calls++
	return "1-0", nil
}

type stubLimiter struct{ allow bool }

func (l stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return l.allow, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "scriptgen-api"
	cfg.Security.JWT.Secret = "test-secret"
	cfg.Security.JWT.Issuer = "scriptgen-api"
	cfg.Security.Webhook.Secret = "hook-secret"
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 10, Window: time.Minute}
	return cfg
}

func newTestRouter(pub *stubPublisher, limiter middleware.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewWithDeps(testConfig(), &Handlers{
		Health:     handler.NewHealthHandler(nil, nil),
		Generation: handler.NewGenerationHandler(nil, nil),
		Credit:     handler.NewCreditHandler(stubLedger{}, nil),
		Webhook:    handler.NewWebhookHandler(pub),
		User:       handler.NewUserHandler(nil),
	}, limiter).Engine()
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := utils.NewJWTManager("test-secret", "scriptgen-api").GenerateToken("user-1", "a@b.c", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthGuardsV1(t *testing.T) {
	r := newTestRouter(&stubPublisher{}, stubLimiter{allow: true})

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/v1/credits", nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token(t))
	w := serve(r, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"available":50`) {
		t.Fatalf("authorized: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("request id header missing")
	}

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/live", nil)); w.Code != http.StatusOK {
		t.Fatalf("live: status = %d", w.Code)
	}
}

func TestRateLimitApplied(t *testing.T) {
	r := newTestRouter(&stubPublisher{}, stubLimiter{allow: false})
	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token(t))
	if w := serve(r, req); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWebhookRequiresSharedSecret(t *testing.T) {
	pub := &stubPublisher{}
	r := newTestRouter(pub, stubLimiter{allow: false})
	body := `{"event_id":"evt_1","user_id":"user-2","credits":100}`

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if w := serve(r, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.WebhookSecretHeader, "hook-secret")
	if w := serve(r, req); w.Code != http.StatusAccepted {
		t.Fatalf("with secret: %d %s", w.Code, w.Body.String())
	}
	if pub.calls != 1 {
		t.Fatalf("publisher calls = %d", pub.calls)
	}
}
