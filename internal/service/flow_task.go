package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Iceeze/BitrixAssistant/internal/domain/dialog"
)

func (e *Engine) taskTitle(ctx context.Context, sess *dialog.Session, text string) {
	if utf8.RuneCountInString(text) > 255 {
		e.reply(ctx, sess.ChatID, "❌ Слишком длинное название. Максимум 255 символов. Введите снова:")
		return
	}
	sess.Fields["title"] = text
	sess.State = dialog.StateTaskDescription
	e.reply(ctx, sess.ChatID, "Введите описание задачи (или 'нет' чтобы пропустить):")
}

func (e *Engine) taskDescription(ctx context.Context, sess *dialog.Session, text string) {
	if skipped(text) {
		text = ""
	}
	sess.Fields["description"] = text
	sess.State = dialog.StateTaskResponsible
	e.reply(ctx, sess.ChatID, "Введите ID ответственного пользователя (или 'нет' чтобы назначить себя):")
}

func (e *Engine) taskResponsible(ctx context.Context, sess *dialog.Session, text string) {
	sub, ok := e.subscriberFor(ctx, sess.ChatID)
	if !ok {
		return
	}

	if skipped(text) {
		sess.Fields["responsible_id"] = fmt.Sprintf("%d", sub.UserID)
	} else {
		if !isDigits(text) {
			e.reply(ctx, sess.ChatID, "❌ ID должен быть числом. Введите снова:")
			return
		}
		exists, err := e.portal.UserExists(ctx, sub.Domain, sub.AccessToken, text)
		if err != nil || !exists {
			e.reply(ctx, sess.ChatID, "❌ Пользователь не найден. Введите снова:")
			return
		}
		sess.Fields["responsible_id"] = text
	}

	sess.State = dialog.StateTaskPriority
	e.reply(ctx, sess.ChatID, "Введите приоритет (1-низкий, 2-средний, 3-высокий или 'нет'):")
}

func (e *Engine) taskPriority(ctx context.Context, sess *dialog.Session, text string) {
	if !skipped(text) {
		// User-facing scale 1..3 maps to portal codes 0..2.
		priority, ok := map[string]string{"1": "0", "2": "1", "3": "2"}[text]
		if !ok {
			e.reply(ctx, sess.ChatID, "❌ Неверный приоритет. Используйте 1, 2 или 3. Введите снова:")
			return
		}
		sess.Fields["priority"] = priority
	}
	sess.State = dialog.StateTaskDeadline
	e.reply(ctx, sess.ChatID, "Введите крайний срок в формате ГГГГ-ММ-ДД (или 'нет'):")
}

func (e *Engine) taskDeadline(ctx context.Context, sess *dialog.Session, text string) {
	if !skipped(text) {
		day, err := time.Parse("2006-01-02", text)
		if err != nil {
			e.reply(ctx, sess.ChatID, "❌ Неверный формат даты. Используйте ГГГГ-ММ-ДД. Введите снова:")
			return
		}
		sess.Fields["deadline"] = day.Format("2006-01-02T15:04:05")
	}

	// Terminal step: whatever happens next, the dialog is over.
	defer e.sessions.Clear(sess.ChatID)

	sub, ok := e.subscriberFor(ctx, sess.ChatID)
	if !ok {
		return
	}

	fields := map[string]string{
		"TITLE":          sess.Fields["title"],
		"DESCRIPTION":    sess.Fields["description"],
		"RESPONSIBLE_ID": sess.Fields["responsible_id"],
	}
	if p, ok := sess.Fields["priority"]; ok {
		fields["PRIORITY"] = p
	}
	if d, ok := sess.Fields["deadline"]; ok {
		fields["DEADLINE"] = d
	}

	taskID, err := e.portal.AddTask(ctx, sub.Domain, sub.AccessToken, fields)
	if err != nil {
		e.logger.Error("task creation failed", "chat_id", sess.ChatID, "error", err)
		e.reply(ctx, sess.ChatID, "❌ Ошибка при создании задачи.")
		return
	}
	e.reply(ctx, sess.ChatID, fmt.Sprintf("✅ Задача создана! ID: %s", taskID))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
