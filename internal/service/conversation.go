package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Iceeze/BitrixAssistant/internal/domain/dialog"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/port/chat"
)

const authRequiredNotice = "❗ Сначала авторизуйтесь через /start"

// Engine drives the guided multi-turn dialogs: task and deal creation,
// commenting, task editing, and task history. One dialog per chat;
// starting a new one replaces the old, /cancel aborts.
type Engine struct {
	sessions   *dialog.Store
	portal     Portal
	registry   *Registry
	sender     chat.Sender
	homeDomain string
	logger     *slog.Logger
}

// NewEngine creates the dialog engine.
func NewEngine(sessions *dialog.Store, portal Portal, registry *Registry, sender chat.Sender, homeDomain string, logger *slog.Logger) *Engine {
	return &Engine{
		sessions:   sessions,
		portal:     portal,
		registry:   registry,
		sender:     sender,
		homeDomain: homeDomain,
		logger:     logger,
	}
}

// Start begins a flow for the chat, replacing any active session.
func (e *Engine) Start(chatID int64, flow dialog.Flow, state dialog.State) {
	e.sessions.Start(chatID, flow, state)
}

// Active reports whether the chat has a dialog in progress.
func (e *Engine) Active(chatID int64) bool {
	_, ok := e.sessions.Get(chatID)
	return ok
}

// Cancel aborts the chat's dialog. It reports whether there was one.
func (e *Engine) Cancel(chatID int64) bool {
	if _, ok := e.sessions.Get(chatID); !ok {
		return false
	}
	e.sessions.Clear(chatID)
	return true
}

// HandleInput advances the chat's dialog with a text message. Input
// for a chat without a session is ignored.
func (e *Engine) HandleInput(ctx context.Context, chatID int64, text string) {
	sess, ok := e.sessions.Get(chatID)
	if !ok {
		return
	}
	text = strings.TrimSpace(text)

	switch sess.State {
	case dialog.StateTaskTitle:
		e.taskTitle(ctx, sess, text)
	case dialog.StateTaskDescription:
		e.taskDescription(ctx, sess, text)
	case dialog.StateTaskResponsible:
		e.taskResponsible(ctx, sess, text)
	case dialog.StateTaskPriority:
		e.taskPriority(ctx, sess, text)
	case dialog.StateTaskDeadline:
		e.taskDeadline(ctx, sess, text)

	case dialog.StateDealTitle:
		e.dealTitle(ctx, sess, text)
	case dialog.StateDealAddress:
		e.dealAddress(ctx, sess, text)
	case dialog.StateDealStage:
		e.dealStage(ctx, sess, text)

	case dialog.StateCommentTaskID:
		e.commentTaskID(ctx, sess, text)
	case dialog.StateCommentText:
		e.commentText(ctx, sess, text)

	case dialog.StateEditTaskID:
		e.editTaskID(ctx, sess, text)
	case dialog.StateEditEditing:
		e.editFieldValue(ctx, sess, text)

	case dialog.StateHistoryTaskID:
		e.historyTaskID(ctx, sess, text)

	default:
		e.logger.Warn("dialog in unknown state", "chat_id", chatID, "state", sess.State)
		e.sessions.Clear(chatID)
	}
}

// HandleCallback advances the task-edit dialog on a keyboard press.
// It reports whether the callback belonged to an active dialog.
func (e *Engine) HandleCallback(ctx context.Context, chatID, messageID int64, callbackID, data string) bool {
	sess, ok := e.sessions.Get(chatID)
	if !ok || sess.State != dialog.StateEditChoosing {
		return false
	}
	switch {
	case strings.HasPrefix(data, "edit_field_"):
		e.editChooseField(ctx, sess, messageID, callbackID, strings.TrimPrefix(data, "edit_field_"))
	case data == "edit_save":
		e.editSave(ctx, sess, messageID, callbackID)
	case data == "edit_cancel":
		e.editCancel(ctx, sess, messageID, callbackID)
	default:
		return false
	}
	return true
}

// reply sends a plain text message to the chat, logging send failures.
func (e *Engine) reply(ctx context.Context, chatID int64, text string) {
	e.send(ctx, chat.Message{ChatID: chatID, Text: text})
}

func (e *Engine) send(ctx context.Context, msg chat.Message) {
	if err := e.sender.Send(ctx, msg); err != nil {
		e.logger.Error("dialog reply failed", "chat_id", msg.ChatID, "error", err)
	}
}

// subscriberFor loads the chat's subscription, replying with the
// authorization prompt when there is none.
func (e *Engine) subscriberFor(ctx context.Context, chatID int64) (*subscriber.Subscriber, bool) {
	sub, err := e.registry.Get(ctx, chatID)
	if err != nil {
		e.reply(ctx, chatID, authRequiredNotice)
		return nil, false
	}
	return sub, true
}

// skipped reports whether the user declined an optional step.
func skipped(text string) bool {
	return strings.EqualFold(text, "нет")
}
