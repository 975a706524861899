package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"scriptgen-api/internal/application/generation"
	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/internal/infrastructure/messaging"
)

const testUserID = "user-1"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", testUserID)
		c.Set("request_id", "req-1")
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := createTestResponseRecorder()
	r.ServeHTTP(w, req)
	return w.ResponseRecorder
}

// testResponseRecorder mirrors gin's test-only TestResponseRecorder, which is
// not exported outside gin's own tests; c.Stream requires http.CloseNotifier.
type testResponseRecorder struct {
	*httptest.ResponseRecorder
	closeChannel chan bool
}

func (r *testResponseRecorder) CloseNotify() <-chan bool {
	return r.closeChannel
}

func createTestResponseRecorder() *testResponseRecorder {
	return &testResponseRecorder{
		httptest.NewRecorder(),
		make(chan bool, 1),
	}
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   struct {
		ErrorCode string `json:"error_code"`
		Details   string `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body
}

type fakeGenerationService struct {
	startErr   error
	run        *generation.Run
	outcome    *generation.Outcome
	execErr    error
	active     bool
	gen        *entity.Generation
	getErr     error
	list       []*entity.Generation
	regen      *generation.RegenerateOutcome
	regenErr   error
	gotConfig  entity.VideoConfig
	gotSection entity.Stage
}

func (f *fakeGenerationService) Start(_ context.Context, _ string, cfg entity.VideoConfig) (*generation.Run, error) {
	f.gotConfig = cfg
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.run, nil
}

func (f *fakeGenerationService) Execute(context.Context, *generation.Run) (*generation.Outcome, error) {
	return f.outcome, f.execErr
}

func (f *fakeGenerationService) Cancel(string) bool { return f.active }

func (f *fakeGenerationService) Get(context.Context, string, string) (*entity.Generation, error) {
	return f.gen, f.getErr
}

func (f *fakeGenerationService) List(_ context.Context, _ string, p repository.Pagination) (*repository.PagedResult[*entity.Generation], error) {
	return &repository.PagedResult[*entity.Generation]{Items: f.list, Total: int64(len(f.list))}, nil
}

func (f *fakeGenerationService) Regenerate(_ context.Context, _ string, _ string, section entity.Stage) (*generation.RegenerateOutcome, error) {
	f.gotSection = section
	return f.regen, f.regenErr
}

type fakeTranslations struct {
	text string
	err  error
}

func (f *fakeTranslations) Translate(_ context.Context, _ string, id, _ string) (*entity.Generation, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return &entity.Generation{ID: id}, f.text, nil
}

type fakeLedger struct {
	avail quota.Availability
	txns  []*entity.CreditTransaction
}

func (f *fakeLedger) CheckAvailable(context.Context, string) (quota.Availability, error) {
	return f.avail, nil
}

func (f *fakeLedger) History(context.Context, string, repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	return &repository.PagedResult[*entity.CreditTransaction]{Items: f.txns, Total: int64(len(f.txns))}, nil
}

type fakeRewards struct {
	result *quota.CreditResult
	err    error
	code   string
}

func (f *fakeRewards) RedeemPromo(_ context.Context, _ string, code string) (*quota.CreditResult, error) {
	f.code = code
	return f.result, f.err
}

func (f *fakeRewards) ClaimReferral(_ context.Context, _ string, code string) (*quota.CreditResult, error) {
	f.code = code
	return f.result, f.err
}

type fakePublisher struct {
	got       *messaging.PaymentEventMessage
	requestID string
	err       error
}

func (f *fakePublisher) PublishPaymentEvent(_ context.Context, evt *messaging.PaymentEventMessage, requestID string) (string, error) {
	f.got = evt
	f.requestID = requestID
	if f.err != nil {
		return "", f.err
	}
	return "1-0", nil
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

type fakeUsers struct{ user *entity.User }

func (f fakeUsers) GetByID(context.Context, string) (*entity.User, error) { return f.user, nil }
