package quota

import (
	"context"
	"sort"
	"sync"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
)

type txCtxKey struct{}

// memStore 内存版余额/流水/用户存储，WithTransaction 串行执行并在失败时回滚
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	balances map[string]entity.CreditBalance
	txns     []entity.CreditTransaction
	users    map[string]*entity.User
	// commitErr 非空时事务体成功后仍回滚，模拟提交失败
	commitErr error
}

func newMemStore() *memStore {
	return &memStore{
		balances: make(map[string]entity.CreditBalance),
		users:    make(map[string]*entity.User),
	}
}

type memSnapshot struct {
	balances map[string]entity.CreditBalance
	txns     []entity.CreditTransaction
	referred map[string]*string
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		balances: make(map[string]entity.CreditBalance, len(s.balances)),
		txns:     append([]entity.CreditTransaction(nil), s.txns...),
		referred: make(map[string]*string, len(s.users)),
	}
	for k, v := range s.balances {
		snap.balances[k] = v
	}
	for id, u := range s.users {
		snap.referred[id] = u.ReferredBy
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = snap.balances
	s.txns = snap.txns
	for id, ref := range snap.referred {
		if u, ok := s.users[id]; ok {
			u.ReferredBy = ref
		}
	}
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txCtxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txCtxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	if s.commitErr != nil {
		s.restore(snap)
		return s.commitErr
	}
	return nil
}

func (s *memStore) Get(_ context.Context, userID string) (*entity.CreditBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *memStore) GetForUpdate(_ context.Context, userID string) (*entity.CreditBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		b = entity.CreditBalance{UserID: userID}
		s.balances[userID] = b
	}
	return &b, nil
}

func (s *memStore) Save(_ context.Context, b *entity.CreditBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[b.UserID] = *b
	return nil
}

func (s *memStore) CreateTransaction(_ context.Context, tx *entity.CreditTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns = append(s.txns, *tx)
	return nil
}

func (s *memStore) GetTransactionByEvent(_ context.Context, userID, eventID string) (*entity.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txns {
		tx := s.txns[i]
		if tx.UserID == userID && tx.EventID != nil && *tx.EventID == eventID {
			return &tx, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListTransactions(_ context.Context, userID string, p repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []*entity.CreditTransaction
	for i := range s.txns {
		if s.txns[i].UserID == userID {
			tx := s.txns[i]
			items = append(items, &tx)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	total := int64(len(items))
	start := min(p.Offset(), len(items))
	end := min(start+p.Limit(), len(items))
	return repository.NewPagedResult(items[start:end], total, p), nil
}

func (s *memStore) transactionsFor(userID string) []entity.CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.CreditTransaction
	for _, tx := range s.txns {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

// UserRepository

func (s *memStore) Create(_ context.Context, u *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetByReferralCode(_ context.Context, code string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ReferralCode == code {
			return u, nil
		}
	}
	return nil, nil
}

func (s *memStore) SetReferredBy(_ context.Context, userID, referrerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.ReferredBy != nil {
		return false, nil
	}
	ref := referrerID
	u.ReferredBy = &ref
	return true, nil
}

type countingCache struct {
	mu          sync.Mutex
	invalidated map[string]int
}

func (c *countingCache) GetOrLoad(ctx context.Context, _ string, loader func(ctx context.Context) (*entity.CreditBalance, error)) (*entity.CreditBalance, error) {
	return loader(ctx)
}

func (c *countingCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidated == nil {
		c.invalidated = make(map[string]int)
	}
	c.invalidated[userID]++
	return nil
}

// LedgerAuditRepository

func (s *memStore) ListBalances(_ context.Context, afterUserID string, limit int) ([]*entity.CreditBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.balances))
	for id := range s.balances {
		if id > afterUserID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*entity.CreditBalance, 0, len(ids))
	for _, id := range ids {
		b := s.balances[id]
		out = append(out, &b)
	}
	return out, nil
}

func (s *memStore) SumTransactions(_ context.Context, userID string) (repository.TransactionTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := repository.TransactionTotals{UserID: userID}
	for _, tx := range s.txns {
		if tx.UserID != userID {
			continue
		}
		t.Count++
		if tx.Amount > 0 {
			t.Credited += tx.Amount
		} else {
			t.Consumed += -tx.Amount
		}
		t.FromFree += tx.FromFree
		t.FromPaid += tx.FromPaid
	}
	return t, nil
}
