// Package dialog defines the conversation session model for guided
// multi-turn flows and its in-memory store.
package dialog

import "sync"

// Flow names one guided data-entry dialog.
type Flow string

const (
	FlowTaskCreate  Flow = "task_create"
	FlowDealCreate  Flow = "deal_create"
	FlowComment     Flow = "comment"
	FlowTaskEdit    Flow = "task_edit"
	FlowTaskHistory Flow = "task_history"
)

// State names one step within a flow.
type State string

const (
	StateTaskTitle       State = "task_title"
	StateTaskDescription State = "task_description"
	StateTaskResponsible State = "task_responsible"
	StateTaskPriority    State = "task_priority"
	StateTaskDeadline    State = "task_deadline"

	StateDealTitle   State = "deal_title"
	StateDealAddress State = "deal_address"
	StateDealStage   State = "deal_stage"

	StateCommentTaskID State = "comment_task_id"
	StateCommentText   State = "comment_text"

	StateEditTaskID   State = "edit_task_id"
	StateEditChoosing State = "edit_choosing_field"
	StateEditEditing  State = "edit_editing_field"

	StateHistoryTaskID State = "history_task_id"
)

// Session is the per-chat conversation state: one active flow, the
// current step, and the field values accumulated so far. Changes is
// used only by the task-edit loop, which batches field edits until an
// explicit save.
type Session struct {
	ChatID  int64
	Flow    Flow
	State   State
	Fields  map[string]string
	Changes map[string]string
}

// Store keeps the active conversation session per chat. One session per
// chat at a time; starting a new flow overwrites the previous session.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Start creates a fresh session for the chat, replacing any existing one.
func (s *Store) Start(chatID int64, flow Flow, state State) *Session {
	sess := &Session{
		ChatID:  chatID,
		Flow:    flow,
		State:   state,
		Fields:  make(map[string]string),
		Changes: make(map[string]string),
	}
	s.mu.Lock()
	s.sessions[chatID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the active session for the chat, if any.
func (s *Store) Get(chatID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	return sess, ok
}

// Clear removes the chat's session. Clearing a chat with no session is
// a no-op.
func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	delete(s.sessions, chatID)
	s.mu.Unlock()
}
