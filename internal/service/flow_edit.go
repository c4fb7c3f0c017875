package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iceeze/BitrixAssistant/internal/domain/dialog"
	"github.com/Iceeze/BitrixAssistant/internal/port/chat"
)

// editableFields maps field keys to the input hint shown when the
// field is chosen, in keyboard order.
var editableFields = []struct {
	key   string
	label string
	hint  string
}{
	{"title", "✏️ Название", "новое название"},
	{"description", "📝 Описание", "новое описание"},
	{"priority", "🚨 Приоритет", "новый приоритет (0 — низкий, 1 — средний, 2 — высокий)"},
	{"responsible_id", "👤 Ответственный", "ID ответственного сотрудника"},
	{"status", "📈 Статус", "статус задачи (2 — Новая, 3 — В работе, 4 — Ожидает контроля, 5 — Завершена, 6 — Отложена)"},
	{"deadline", "⏰ Срок", "новый срок (ГГГГ-ММ-ДД)"},
}

// editKeyboard builds the field chooser, checkmarking fields that
// already carry a pending change.
func editKeyboard(changes map[string]string) [][]chat.Button {
	rows := make([][]chat.Button, 0, len(editableFields)+1)
	for _, f := range editableFields {
		label := f.label
		if _, ok := changes[strings.ToUpper(f.key)]; ok {
			label = "✅ " + label
		}
		rows = append(rows, []chat.Button{{Text: label, Data: "edit_field_" + f.key}})
	}
	rows = append(rows, []chat.Button{{Text: "✅ Сохранить", Data: "edit_save"}})
	return rows
}

func editHint(field string) (string, bool) {
	for _, f := range editableFields {
		if f.key == field {
			return f.hint, true
		}
	}
	return "", false
}

func (e *Engine) editTaskID(ctx context.Context, sess *dialog.Session, text string) {
	if !isDigits(text) {
		e.reply(ctx, sess.ChatID, "❌ ID должен быть числом. Попробуйте ещё раз:")
		return
	}
	sub, ok := e.subscriberFor(ctx, sess.ChatID)
	if !ok {
		return
	}

	task, err := e.portal.GetTask(ctx, sub.Domain, sub.AccessToken, text)
	if err != nil || task.ID == "" {
		e.reply(ctx, sess.ChatID, "❌ Задача не найдена.")
		return
	}

	isCreator := task.CreatorID == fmt.Sprintf("%d", sub.UserID)
	if !sub.IsAdmin && !isCreator {
		e.reply(ctx, sess.ChatID, "🚫 У вас нет прав редактировать эту задачу.")
		return
	}

	sess.Fields["task_id"] = text
	sess.State = dialog.StateEditChoosing
	e.send(ctx, chat.Message{
		ChatID:   sess.ChatID,
		Text:     "Выберите поле для редактирования:",
		Keyboard: editKeyboard(sess.Changes),
	})
}

func (e *Engine) editChooseField(ctx context.Context, sess *dialog.Session, messageID int64, callbackID, field string) {
	e.answer(ctx, callbackID, "", false)

	hint, ok := editHint(field)
	if !ok {
		e.reply(ctx, sess.ChatID, "⚠️ Неизвестное поле для редактирования.")
		return
	}

	sess.Fields["current_field"] = field
	sess.State = dialog.StateEditEditing
	if err := e.sender.EditText(ctx, sess.ChatID, messageID,
		fmt.Sprintf("✏️ Введите %s (или 'нет' чтобы пропустить):", hint), nil); err != nil {
		e.logger.Error("edit prompt failed", "chat_id", sess.ChatID, "error", err)
	}
}

func (e *Engine) editFieldValue(ctx context.Context, sess *dialog.Session, text string) {
	field := sess.Fields["current_field"]

	if !skipped(text) {
		switch field {
		case "deadline":
			day, err := time.Parse("2006-01-02", text)
			if err != nil {
				e.reply(ctx, sess.ChatID, "❌ Неверный формат даты. Повторите: ГГГГ-ММ-ДД")
				return
			}
			text = day.Format("2006-01-02") + "T00:00:00"
		case "priority":
			if text != "0" && text != "1" && text != "2" {
				e.reply(ctx, sess.ChatID, "❌ Приоритет должен быть 0, 1 или 2. Повторите:")
				return
			}
		case "status":
			if text != "2" && text != "3" && text != "4" && text != "5" && text != "6" {
				e.reply(ctx, sess.ChatID, "❌ Статус должен быть от 2 до 6. Повторите:")
				return
			}
		case "responsible_id":
			if !isDigits(text) {
				e.reply(ctx, sess.ChatID, "❌ ID должен быть числом. Повторите:")
				return
			}
			sub, ok := e.subscriberFor(ctx, sess.ChatID)
			if !ok {
				return
			}
			exists, err := e.portal.UserExists(ctx, sub.Domain, sub.AccessToken, text)
			if err != nil || !exists {
				e.reply(ctx, sess.ChatID, "❌ Пользователь с таким ID не найден. Повторите:")
				return
			}
		}
		sess.Changes[strings.ToUpper(field)] = text
	}

	sess.State = dialog.StateEditChoosing
	e.send(ctx, chat.Message{
		ChatID:   sess.ChatID,
		Text:     "Что ещё хотите изменить? Или нажмите «Сохранить»",
		Keyboard: editKeyboard(sess.Changes),
	})
}

func (e *Engine) editSave(ctx context.Context, sess *dialog.Session, messageID int64, callbackID string) {
	if len(sess.Changes) == 0 {
		e.answer(ctx, callbackID, "⚠️ Нет изменений для сохранения.", true)
		return
	}

	defer e.sessions.Clear(sess.ChatID)
	defer e.answer(ctx, callbackID, "", false)

	sub, ok := e.subscriberFor(ctx, sess.ChatID)
	if !ok {
		return
	}

	taskID := sess.Fields["task_id"]
	result := fmt.Sprintf("✅ Задача №%s успешно обновлена!", taskID)
	if err := e.portal.UpdateTask(ctx, sub.Domain, sub.AccessToken, taskID, sess.Changes); err != nil {
		e.logger.Error("task update failed", "chat_id", sess.ChatID, "task_id", taskID, "error", err)
		result = fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if err := e.sender.EditText(ctx, sess.ChatID, messageID, result, nil); err != nil {
		e.logger.Error("edit result failed", "chat_id", sess.ChatID, "error", err)
	}
}

func (e *Engine) editCancel(ctx context.Context, sess *dialog.Session, messageID int64, callbackID string) {
	e.sessions.Clear(sess.ChatID)
	if err := e.sender.EditText(ctx, sess.ChatID, messageID, "❌ Редактирование отменено.", nil); err != nil {
		e.logger.Error("edit cancel message failed", "chat_id", sess.ChatID, "error", err)
	}
	e.answer(ctx, callbackID, "", false)
}

func (e *Engine) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := e.sender.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		e.logger.Error("callback answer failed", "callback_id", callbackID, "error", err)
	}
}
