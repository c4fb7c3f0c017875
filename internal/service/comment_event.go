package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Iceeze/BitrixAssistant/internal/domain/event"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/webform"
)

// maxCommentRunes bounds the quoted comment body in notifications.
const maxCommentRunes = 1000

// renderComment builds the notification for a new task comment. The
// audience rule follows the parent task's responsible: no responsible,
// no notification.
func (r *Router) renderComment(ctx context.Context, ev event.Inbound, sub *subscriber.Subscriber) (string, error) {
	commentID := webform.Lookup(ev.Payload, "data", "FIELDS_AFTER", "ID")
	taskID := webform.Lookup(ev.Payload, "data", "FIELDS_AFTER", "TASK_ID")
	if commentID == "" || taskID == "" {
		return "", fmt.Errorf("comment event %q without comment/task id", ev.Type)
	}

	comment, err := r.portal.GetComment(ctx, sub.Domain, sub.AccessToken, taskID, commentID)
	if err != nil {
		return "", fmt.Errorf("fetch comment %s of task %s: %w", commentID, taskID, err)
	}

	task, err := r.portal.GetTask(ctx, sub.Domain, sub.AccessToken, taskID)
	if err != nil {
		return "", fmt.Errorf("fetch task %s for comment: %w", taskID, err)
	}
	if task.ResponsibleID == "" {
		return "", nil
	}
	if strconv.FormatInt(sub.UserID, 10) != task.ResponsibleID && !sub.IsAdmin {
		return "", nil
	}

	text := comment.Text
	if runes := []rune(text); len(runes) > maxCommentRunes {
		text = string(runes[:maxCommentRunes])
	}

	return fmt.Sprintf(
		"💬 Новый комментарий к задаче <b><a href='%s'>№%s</a></b>\n"+
			"Автор: %s\n"+
			"Текст: %s\n"+
			"Дата: %s\n",
		r.taskURL(sub.UserID, taskID), taskID,
		comment.AuthorName, text, formatPortalTime(comment.PostDate)), nil
}
