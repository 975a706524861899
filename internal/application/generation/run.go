package generation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"scriptgen-api/internal/domain/entity"
)

// ProgressEvent 运行进度，供 SSE 推送
type ProgressEvent struct {
	RunID   string       `json:"run_id"`
	State   State        `json:"state"`
	Stage   entity.Stage `json:"stage,omitempty"`
	Status  EventStatus  `json:"status"`
	Message string       `json:"message,omitempty"`
	At      time.Time    `json:"at"`
}

// Run 单次生成运行的句柄，由调用方持有并可随时取消
type Run struct {
	ID        string
	UserID    string
	Config    entity.VideoConfig
	Timing    entity.TimingWindows
	Cost      int64
	StartedAt time.Time

	mu        sync.Mutex
	state     State
	executed  bool
	cancelled chan struct{}
	once      sync.Once
	events    chan ProgressEvent
	closeOnce sync.Once
}

func newRun(userID string, cfg entity.VideoConfig, timing entity.TimingWindows, cost int64, buffer int) *Run {
	if buffer <= 0 {
		buffer = 64
	}
	return &Run{
		ID:        uuid.NewString(),
		UserID:    userID,
		Config:    cfg,
		Timing:    timing,
		Cost:      cost,
		StartedAt: time.Now(),
		state:     StateIdle,
		cancelled: make(chan struct{}),
		events:    make(chan ProgressEvent, buffer),
	}
}

// Cancel 发出取消信号，可重复调用
func (r *Run) Cancel() {
	r.once.Do(func() { close(r.cancelled) })
}

// Cancelled 是否已收到取消信号
func (r *Run) Cancelled() bool {
	select {
	case <-r.cancelled:
		return true
	default:
		return false
	}
}

// Done 取消信号通道
func (r *Run) Done() <-chan struct{} {
	return r.cancelled
}

// State 当前状态
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Events 进度事件通道，运行结束后关闭
func (r *Run) Events() <-chan ProgressEvent {
	return r.events
}

func (r *Run) markExecuted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.executed {
		return false
	}
	r.executed = true
	return true
}

// setState 终止状态不再变更
func (r *Run) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.IsTerminal() {
		return
	}
	r.state = s
}

// publish 非阻塞投递，缓冲区满时丢弃
func (r *Run) publish(stage entity.Stage, status EventStatus, msg string) {
	evt := ProgressEvent{
		RunID:   r.ID,
		State:   r.State(),
		Stage:   stage,
		Status:  status,
		Message: msg,
		At:      time.Now(),
	}
	select {
	case r.events <- evt:
	default:
	}
}

func (r *Run) closeEvents() {
	r.closeOnce.Do(func() { close(r.events) })
}
