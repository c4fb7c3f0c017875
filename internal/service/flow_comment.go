package service

import (
	"context"
	"fmt"

	"github.com/Iceeze/BitrixAssistant/internal/domain/dialog"
)

func (e *Engine) commentTaskID(ctx context.Context, sess *dialog.Session, text string) {
	if !isDigits(text) {
		e.reply(ctx, sess.ChatID, "❌ ID задачи должен быть числом. Введите снова:")
		return
	}
	sub, ok := e.subscriberFor(ctx, sess.ChatID)
	if !ok {
		return
	}

	task, err := e.portal.GetTask(ctx, sub.Domain, sub.AccessToken, text)
	if err != nil {
		e.logger.Error("task lookup for comment failed", "chat_id", sess.ChatID, "task_id", text, "error", err)
		e.reply(ctx, sess.ChatID, "❌ Ошибка проверки доступа к задаче.")
		e.sessions.Clear(sess.ChatID)
		return
	}
	if task.ID == "" {
		e.reply(ctx, sess.ChatID, "❌ Задача не найдена или нет доступа. Введите другой ID:")
		return
	}

	sess.Fields["task_id"] = text
	sess.State = dialog.StateCommentText
	e.reply(ctx, sess.ChatID, "Введите текст комментария:")
}

func (e *Engine) commentText(ctx context.Context, sess *dialog.Session, text string) {
	if text == "" {
		e.reply(ctx, sess.ChatID, "❌ Комментарий не может быть пустым. Введите снова:")
		return
	}

	defer e.sessions.Clear(sess.ChatID)

	sub, ok := e.subscriberFor(ctx, sess.ChatID)
	if !ok {
		return
	}

	taskID := sess.Fields["task_id"]
	authorID := fmt.Sprintf("%d", sub.UserID)
	if err := e.portal.AddComment(ctx, sub.Domain, sub.AccessToken, taskID, authorID, text); err != nil {
		e.logger.Error("comment creation failed", "chat_id", sess.ChatID, "task_id", taskID, "error", err)
		e.reply(ctx, sess.ChatID, "❌ Ошибка добавления комментария.")
		return
	}
	e.reply(ctx, sess.ChatID, fmt.Sprintf("💬 Комментарий добавлен к задаче %s", taskID))
}
