package generation

// State 运行状态
type State string

const (
	StateIdle              State = "idle"
	StateHookIntro         State = "hook_intro"
	StateMainContent       State = "main_content"
	StateDemoOutro         State = "demo_outro"
	StateProductionNotes   State = "production_notes"
	StateParallelArtifacts State = "parallel_artifacts"
	StateShorts            State = "shorts"
	StateSettling          State = "settling"
	StateDone              State = "done"
	StateCancelled         State = "cancelled"
	StateFailed            State = "failed"
)

// IsTerminal 是否为终止状态
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}

// EventStatus 进度事件类型
type EventStatus string

const (
	EventStarted   EventStatus = "started"
	EventCompleted EventStatus = "completed"
	EventFailed    EventStatus = "failed"
	EventDegraded  EventStatus = "degraded"
	EventCancelled EventStatus = "cancelled"
)
