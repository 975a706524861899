package generation

import (
	"sync"

	"scriptgen-api/pkg/metrics"
)

// RunRegistry 每个用户至多一个活跃运行
type RunRegistry struct {
	mu   sync.Mutex
	runs map[string]*Run
}

// NewRunRegistry 创建运行注册表
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*Run)}
}

// Register 登记新运行，同一用户的旧运行被取消并替换
func (r *RunRegistry) Register(run *Run) (previous *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous = r.runs[run.UserID]
	if previous != nil {
		previous.Cancel()
	} else {
		metrics.ActiveRuns.Inc()
	}
	r.runs[run.UserID] = run
	return previous
}

// Remove 仅当登记的仍是该运行时移除
func (r *RunRegistry) Remove(run *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.runs[run.UserID]; ok && current == run {
		delete(r.runs, run.UserID)
		metrics.ActiveRuns.Dec()
	}
}

func (r *RunRegistry) active(userID string) *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[userID]
}

// Cancel 取消用户当前的活跃运行
func (r *RunRegistry) Cancel(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[userID]
	if !ok {
		return false
	}
	run.Cancel()
	return true
}
