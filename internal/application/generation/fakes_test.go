package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/internal/workflow/prompt"
)

type stageReply func(req *entity.GenerationRequest) (string, error)

// fakeGenerator 按阶段返回预设输出，并记录调用顺序
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []entity.Stage
	reqs    map[entity.Stage]*entity.GenerationRequest
	replies map[entity.Stage]stageReply
	// after 在某阶段返回前触发，用于模拟中途取消
	after map[entity.Stage]func()
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		reqs:    make(map[entity.Stage]*entity.GenerationRequest),
		replies: make(map[entity.Stage]stageReply),
		after:   make(map[entity.Stage]func()),
	}
}

func (g *fakeGenerator) Generate(_ context.Context, req *entity.GenerationRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req.Stage)
	g.reqs[req.Stage] = req
	reply := g.replies[req.Stage]
	hook := g.after[req.Stage]
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if reply != nil {
		return reply(req)
	}
	return defaultReply(req.Stage), nil
}

func (g *fakeGenerator) called() []entity.Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]entity.Stage(nil), g.calls...)
}

func (g *fakeGenerator) request(stage entity.Stage) *entity.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reqs[stage]
}

func defaultReply(stage entity.Stage) string {
	switch stage {
	case entity.StageSEO:
		return `{"titles":["Go in 10 minutes"],"description":"desc","tags":["go","api"],"thumbnails":["gopher"],"comment":"hi"}`
	case entity.StageImagePrompts:
		return `[{"id":1,"timestamp":"0:10","prompt":"a gopher"}]`
	case entity.StageChapters:
		return `{"chapters":[{"timestamp":"0:00","title":"Intro"}]}`
	case entity.StageBRoll:
		return `{"suggestions":[{"timestamp":"0:30","shot":"keyboard"}]}`
	case entity.StageShorts:
		return `{"shorts":[{"start_time":"1:00","end_time":"1:40","title":"clip"}]}`
	default:
		return "text of " + string(stage)
	}
}

type debitCall struct {
	userID    string
	amount    int64
	txType    entity.TransactionType
	reference string
}

// fakeLedger 只关心可用额度与扣费记录
type fakeLedger struct {
	mu        sync.Mutex
	available int64
	debitErr  error
	debits    []debitCall
}

func (l *fakeLedger) Require(_ context.Context, userID string, amount int64) (quota.Availability, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.available < amount {
		return quota.Availability{}, quota.InsufficientCreditsError{Required: amount, Available: l.available}
	}
	return quota.Availability{UserID: userID, Available: l.available}, nil
}

func (l *fakeLedger) Debit(_ context.Context, userID string, amount int64, txType entity.TransactionType, reference string) (*quota.DebitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.debitErr != nil {
		return nil, l.debitErr
	}
	if l.available < amount {
		return nil, quota.InsufficientCreditsError{Required: amount, Available: l.available}
	}
	l.available -= amount
	l.debits = append(l.debits, debitCall{userID: userID, amount: amount, txType: txType, reference: reference})
	return &quota.DebitResult{}, nil
}

func (l *fakeLedger) debitCalls() []debitCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]debitCall(nil), l.debits...)
}

// fakeGenerationRepo 内存版生成仓储
type fakeGenerationRepo struct {
	mu        sync.Mutex
	items     map[string]*entity.Generation
	createErr error
	updateErr error
	updates   int
}

// fakeTx 用一把互斥锁串行化事务，等价于行锁
type fakeTx struct {
	mu sync.Mutex
}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(repository.TxKey{}).(*fakeTx); ok {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(context.WithValue(ctx, repository.TxKey{}, t))
}

func newFakeGenerationRepo() *fakeGenerationRepo {
	return &fakeGenerationRepo{items: make(map[string]*entity.Generation)}
}

// cloneGeneration 复制记录及其 map 字段，模拟数据库读写的值语义
func cloneGeneration(gen *entity.Generation) *entity.Generation {
	cp := *gen
	if gen.Sections != nil {
		cp.Sections = make(map[entity.Stage]string, len(gen.Sections))
		for k, v := range gen.Sections {
			cp.Sections[k] = v
		}
	}
	if gen.Translations != nil {
		cp.Translations = make(map[string]string, len(gen.Translations))
		for k, v := range gen.Translations {
			cp.Translations[k] = v
		}
	}
	return &cp
}

func (r *fakeGenerationRepo) Create(_ context.Context, gen *entity.Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.items[gen.ID] = cloneGeneration(gen)
	return nil
}

func (r *fakeGenerationRepo) GetByID(_ context.Context, userID, id string) (*entity.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.items[id]
	if !ok || gen.UserID != userID {
		return nil, nil
	}
	return cloneGeneration(gen), nil
}

func (r *fakeGenerationRepo) GetForUpdate(ctx context.Context, userID, id string) (*entity.Generation, error) {
	if _, ok := ctx.Value(repository.TxKey{}).(*fakeTx); !ok {
		return nil, errors.New("GetForUpdate outside transaction")
	}
	return r.GetByID(ctx, userID, id)
}

func (r *fakeGenerationRepo) Update(_ context.Context, gen *entity.Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.items[gen.ID]; !ok {
		return errors.New("not found")
	}
	r.items[gen.ID] = cloneGeneration(gen)
	r.updates++
	return nil
}

func (r *fakeGenerationRepo) ListByUser(_ context.Context, userID string, p repository.Pagination) (*repository.PagedResult[*entity.Generation], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.Generation
	for _, g := range r.items {
		if g.UserID == userID {
			items = append(items, g)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (r *fakeGenerationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type recordingSink struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Store(_ context.Context, gen *entity.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, gen.ID)
	return s.err
}

type fixture struct {
	orch   *Orchestrator
	gen    *fakeGenerator
	ledger *fakeLedger
	repo   *fakeGenerationRepo
	tx     *fakeTx
	sink   *recordingSink
}

func newFixture(available int64) *fixture {
	f := &fixture{
		gen:    newFakeGenerator(),
		ledger: &fakeLedger{available: available},
		repo:   newFakeGenerationRepo(),
		tx:     &fakeTx{},
		sink:   &recordingSink{},
	}
	builder := prompt.NewBuilder(prompt.ModelSet{Primary: "primary-model", Fast: "fast-model"}, 0)
	f.orch = NewOrchestrator(builder, f.gen, f.ledger, f.repo, f.tx, NewRunRegistry(), Options{MaxParallelArtifacts: 2}, f.sink)
	return f
}

func failWith(msg string) stageReply {
	return func(*entity.GenerationRequest) (string, error) { return "", fmt.Errorf("%s", msg) }
}

func indexOf(stages []entity.Stage, s entity.Stage) int {
	for i, st := range stages {
		if st == s {
			return i
		}
	}
	return -1
}

func joined(stages []entity.Stage) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
