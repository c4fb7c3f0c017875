package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iceeze/BitrixAssistant/internal/adapter/bitrix"
	"github.com/Iceeze/BitrixAssistant/internal/domain/dialog"
	"github.com/Iceeze/BitrixAssistant/internal/domain/event"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
)

// historyChunk bounds the entries per chat message; the full history
// of a long-lived task does not fit in one.
const historyChunk = 10

func (e *Engine) historyTaskID(ctx context.Context, sess *dialog.Session, text string) {
	// Single-step flow: the dialog ends whatever the input is.
	e.sessions.Clear(sess.ChatID)

	sub, ok := e.subscriberFor(ctx, sess.ChatID)
	if !ok {
		return
	}
	if !isDigits(text) {
		e.reply(ctx, sess.ChatID, "❌ Неверный формат ID.")
		return
	}

	history, err := e.portal.TaskHistory(ctx, sub.Domain, sub.AccessToken, text)
	if err != nil {
		e.logger.Error("task history failed", "chat_id", sess.ChatID, "task_id", text, "error", err)
		e.reply(ctx, sess.ChatID, "❌ Ошибка: Данная задача недоступна или удалена.")
		return
	}
	if len(history) == 0 {
		e.reply(ctx, sess.ChatID, fmt.Sprintf("ℹ️ Для задачи №%s история изменений не найдена.", text))
		return
	}

	lines := []string{fmt.Sprintf("🗂 История задачи <b><a href='%s'>№%s</a></b>:",
		taskViewURL(e.homeDomain, sub.UserID, text), text)}
	for _, entry := range history {
		lines = append(lines, e.historyLine(ctx, sub, entry))
	}

	for i := 0; i < len(lines); i += historyChunk {
		end := min(i+historyChunk, len(lines))
		e.reply(ctx, sess.ChatID, strings.Join(lines[i:end], "\n"))
	}
}

// historyLine renders one change record.
func (e *Engine) historyLine(ctx context.Context, sub *subscriber.Subscriber, entry bitrix.HistoryEntry) string {
	var text string
	switch entry.Field {
	case "NEW":
		text = "Создана задача\n"
	case "TITLE":
		text = fmt.Sprintf("Изменено Название\nИзменение: %s → %s\n", entry.From, entry.To)
	case "DESCRIPTION":
		text = "Изменено Описание\n"
	case "STATUS":
		text = fmt.Sprintf("Изменен Статус\nИзменение: %s → %s\n",
			event.TaskStatusLabel(entry.From), event.TaskStatusLabel(entry.To))
	case "PRIORITY":
		text = fmt.Sprintf("Изменен Приоритет\nИзменение: %s → %s\n",
			event.TaskPriorityLabel(entry.From), event.TaskPriorityLabel(entry.To))
	case "DEADLINE":
		text = "Изменен Крайний срок\n"
	case "COMMENT":
		text = fmt.Sprintf("Добавлен комментарий №%s\n", entry.To)
	case "RESPONSIBLE_ID":
		from := e.userNameFor(ctx, sub, entry.From)
		to := e.userNameFor(ctx, sub, entry.To)
		text = fmt.Sprintf("Сменен Исполнитель\nИзменение: %s → %s\n", from, to)
	default:
		text = "-"
	}
	text += fmt.Sprintf("Автор: %s", entry.AuthorName)
	return fmt.Sprintf("\n<b>%s</b> - %s", formatPortalTime(entry.CreatedDate), text)
}

func (e *Engine) userNameFor(ctx context.Context, sub *subscriber.Subscriber, userID string) string {
	name, err := e.portal.UserName(ctx, sub.Domain, sub.AccessToken, userID)
	if err != nil || name == "" {
		return "Неизвестный"
	}
	return name
}
