package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Iceeze/BitrixAssistant/internal/domain/event"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/webform"
)

// portalTimeLayout is the timestamp format portal payloads use.
const portalTimeLayout = "2006-01-02T15:04:05-07:00"

// formatPortalTime reformats a portal timestamp for display, returning
// the raw value when it does not parse.
func formatPortalTime(s string) string {
	if s == "" {
		return s
	}
	t, err := time.Parse(portalTimeLayout, s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02 15:04")
}

// taskViewURL links to a task in the portal web UI, scoped to the
// viewing user.
func taskViewURL(homeDomain string, userID int64, taskID string) string {
	return fmt.Sprintf("https://%s/company/personal/user/%d/tasks/task/view/%s/",
		homeDomain, userID, taskID)
}

func (r *Router) taskURL(userID int64, taskID string) string {
	return taskViewURL(r.homeDomain, userID, taskID)
}

// visibleTo implements the task notification audience rule: a task
// with a responsible goes only to that user and to admins; a task
// without one goes to everyone.
func visibleTo(responsibleID string, sub *subscriber.Subscriber) bool {
	if responsibleID == "" {
		return true
	}
	return strconv.FormatInt(sub.UserID, 10) == responsibleID || sub.IsAdmin
}

// renderTask builds the notification text for a task event, or empty
// when the event renders nothing for this chat.
func (r *Router) renderTask(ctx context.Context, ev event.Inbound, sub *subscriber.Subscriber) (string, error) {
	if ev.Type == "ontaskdelete" {
		return "", nil
	}

	taskID := webform.Lookup(ev.Payload, "data", "FIELDS_AFTER", "ID")
	if taskID == "" {
		return "", fmt.Errorf("task event %q without task id", ev.Type)
	}

	task, err := r.portal.GetTask(ctx, sub.Domain, sub.AccessToken, taskID)
	if err != nil {
		return "", fmt.Errorf("fetch task %s: %w", taskID, err)
	}
	if !visibleTo(task.ResponsibleID, sub) {
		return "", nil
	}

	header := fmt.Sprintf("Задача <b><a href='%s'>№%s</a></b>", r.taskURL(sub.UserID, taskID), taskID)
	body := fmt.Sprintf(
		"📌Название: %s\n"+
			"📝Описание: %s\n"+
			"🚨Приоритет: %s\n"+
			"📊Cтатус: %s\n"+
			"⏰Срок исполнения: %s\n"+
			"👤Постановщик: %s\n"+
			"👤Исполнитель: %s",
		task.Title,
		task.Description,
		event.TaskPriorityLabel(task.Priority),
		event.TaskStatusLabel(task.Status),
		formatPortalTime(task.Deadline),
		task.CreatorName,
		task.ResponsibleName)

	switch ev.Type {
	case "ontaskadd":
		return header + " - 🆕Создана🆕\n" + body, nil
	case "ontaskupdate":
		changedBy := r.userNameOr(ctx, sub, task.ChangedBy, "Неизвестный")
		return header + " - 🔄Изменена🔄\n" + body +
			fmt.Sprintf("\n👤Кто изменил: %s", changedBy), nil
	default:
		return "", nil
	}
}

// userNameOr resolves a user's display name, returning fallback for
// unknown ids and lookup failures.
func (r *Router) userNameOr(ctx context.Context, sub *subscriber.Subscriber, userID, fallback string) string {
	if userID == "" {
		return fallback
	}
	name, err := r.portal.UserName(ctx, sub.Domain, sub.AccessToken, userID)
	if err != nil || name == "" {
		return fallback
	}
	return name
}
