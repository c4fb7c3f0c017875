package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Task is a portal task in the shape the tasks REST API returns it.
// Numeric identifiers stay strings; the portal mixes string and number
// encodings depending on the endpoint.
type Task struct {
	ID              string
	Title           string
	Description     string
	Priority        string
	Status          string
	ResponsibleID   string
	ResponsibleName string
	CreatorID       string
	CreatorName     string
	ChangedBy       string
	Deadline        string
}

// TaskSummary is an entry of a task listing.
type TaskSummary struct {
	ID     string
	Title  string
	Status string
}

// HistoryEntry is one change record from a task's history.
type HistoryEntry struct {
	CreatedDate string
	Field       string
	From        string
	To          string
	AuthorName  string
}

// Comment is a task comment item.
type Comment struct {
	ID         string
	AuthorName string
	Text       string
	PostDate   string
}

type taskRef struct {
	Name string `json:"name"`
}

type taskPayload struct {
	ID            flexString `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      flexString `json:"priority"`
	Status        flexString `json:"status"`
	ResponsibleID flexString `json:"responsibleId"`
	CreatorID     flexString `json:"createdBy"`
	Creator       taskRef    `json:"creator"`
	Responsible   taskRef    `json:"responsible"`
	ChangedBy     flexString `json:"changedBy"`
	Deadline      string     `json:"deadline"`
}

func (p taskPayload) toTask() *Task {
	return &Task{
		ID:              string(p.ID),
		Title:           p.Title,
		Description:     p.Description,
		Priority:        string(p.Priority),
		Status:          string(p.Status),
		ResponsibleID:   string(p.ResponsibleID),
		ResponsibleName: p.Responsible.Name,
		CreatorID:       string(p.CreatorID),
		CreatorName:     p.Creator.Name,
		ChangedBy:       string(p.ChangedBy),
		Deadline:        p.Deadline,
	}
}

// GetTask fetches a single task by id.
func (c *Client) GetTask(ctx context.Context, domain, token, taskID string) (*Task, error) {
	raw, err := c.getREST(ctx, domain, "tasks.task.get.json", url.Values{
		"auth":   {token},
		"taskId": {taskID},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Task taskPayload `json:"task"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("tasks.task.get decode: %w", err)
	}
	return payload.Task.toTask(), nil
}

// ListTasks returns tasks visible to the token owner, newest first.
func (c *Client) ListTasks(ctx context.Context, domain, token string) ([]TaskSummary, error) {
	raw, err := c.postJSON(ctx, domain, "tasks.task.list.json", token, map[string]any{
		"order":  map[string]string{"ID": "desc"},
		"select": []string{"ID", "TITLE", "STATUS"},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Tasks []taskPayload `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("tasks.task.list decode: %w", err)
	}
	out := make([]TaskSummary, 0, len(payload.Tasks))
	for _, t := range payload.Tasks {
		out = append(out, TaskSummary{
			ID:     string(t.ID),
			Title:  t.Title,
			Status: string(t.Status),
		})
	}
	return out, nil
}

// TaskHistory returns the change log of a task.
func (c *Client) TaskHistory(ctx context.Context, domain, token, taskID string) ([]HistoryEntry, error) {
	raw, err := c.postJSON(ctx, domain, "tasks.task.history.list.json", token, map[string]any{
		"taskId": taskID,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		List []struct {
			CreatedDate string `json:"createdDate"`
			Field       string `json:"field"`
			Value       struct {
				From flexString `json:"from"`
				To   flexString `json:"to"`
			} `json:"value"`
			User struct {
				Name     string `json:"name"`
				LastName string `json:"lastName"`
			} `json:"user"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("tasks.task.history.list decode: %w", err)
	}
	out := make([]HistoryEntry, 0, len(payload.List))
	for _, e := range payload.List {
		out = append(out, HistoryEntry{
			CreatedDate: e.CreatedDate,
			Field:       e.Field,
			From:        string(e.Value.From),
			To:          string(e.Value.To),
			AuthorName:  strings.TrimSpace(e.User.Name + " " + e.User.LastName),
		})
	}
	return out, nil
}

// AddTask creates a task and returns its id. fields uses the tasks
// REST field names (TITLE, DESCRIPTION, RESPONSIBLE_ID, ...).
func (c *Client) AddTask(ctx context.Context, domain, token string, fields map[string]string) (string, error) {
	raw, err := c.postJSON(ctx, domain, "tasks.task.add.json", token, map[string]any{
		"fields": fields,
	})
	if err != nil {
		return "", err
	}
	var payload struct {
		Task struct {
			ID flexString `json:"id"`
		} `json:"task"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("tasks.task.add decode: %w", err)
	}
	return string(payload.Task.ID), nil
}

// UpdateTask applies field changes to an existing task.
func (c *Client) UpdateTask(ctx context.Context, domain, token, taskID string, fields map[string]string) error {
	_, err := c.postJSON(ctx, domain, "tasks.task.update.json", token, map[string]any{
		"taskId": taskID,
		"fields": fields,
	})
	return err
}

// GetComment fetches one comment of a task.
func (c *Client) GetComment(ctx context.Context, domain, token, taskID, commentID string) (*Comment, error) {
	raw, err := c.getREST(ctx, domain, "task.commentitem.get.json", url.Values{
		"auth":   {token},
		"taskId": {taskID},
		"itemId": {commentID},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		ID         flexString `json:"ID"`
		AuthorName string     `json:"AUTHOR_NAME"`
		Message    string     `json:"POST_MESSAGE"`
		PostDate   string     `json:"POST_DATE"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("task.commentitem.get decode: %w", err)
	}
	return &Comment{
		ID:         string(payload.ID),
		AuthorName: payload.AuthorName,
		Text:       payload.Message,
		PostDate:   payload.PostDate,
	}, nil
}

// AddComment posts a comment to a task on behalf of authorID.
func (c *Client) AddComment(ctx context.Context, domain, token, taskID, authorID, text string) error {
	_, err := c.postJSON(ctx, domain, "task.commentitem.add.json", token, map[string]any{
		"TASK_ID": taskID,
		"fields": map[string]string{
			"AUTHOR_ID":    authorID,
			"POST_MESSAGE": text,
		},
	})
	return err
}
