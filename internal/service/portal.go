// Package service implements the relay's application logic: OAuth
// completion, portal event routing, notification rendering, and the
// guided chat dialogs.
package service

import (
	"context"

	"github.com/Iceeze/BitrixAssistant/internal/adapter/bitrix"
)

// Portal is the Bitrix24 surface the services depend on. The bitrix
// adapter is its production implementation; tests substitute fakes.
type Portal interface {
	ExchangeCode(ctx context.Context, domain, code string) (*bitrix.TokenGrant, error)
	RefreshToken(ctx context.Context, refreshToken string) (*bitrix.TokenGrant, error)
	Profile(ctx context.Context, domain, token string) (*bitrix.Profile, error)

	GetTask(ctx context.Context, domain, token, taskID string) (*bitrix.Task, error)
	ListTasks(ctx context.Context, domain, token string) ([]bitrix.TaskSummary, error)
	TaskHistory(ctx context.Context, domain, token, taskID string) ([]bitrix.HistoryEntry, error)
	AddTask(ctx context.Context, domain, token string, fields map[string]string) (string, error)
	UpdateTask(ctx context.Context, domain, token, taskID string, fields map[string]string) error
	GetComment(ctx context.Context, domain, token, taskID, commentID string) (*bitrix.Comment, error)
	AddComment(ctx context.Context, domain, token, taskID, authorID, text string) error

	GetDeal(ctx context.Context, domain, token, dealID string) (*bitrix.Deal, error)
	ListDeals(ctx context.Context, domain, token, assignedID string) ([]bitrix.Deal, error)
	AddDeal(ctx context.Context, domain, token string, fields map[string]string) (string, error)
	DealStages(ctx context.Context, domain, token string) ([]bitrix.Stage, error)

	UserName(ctx context.Context, domain, token, userID string) (string, error)
	UserExists(ctx context.Context, domain, token, userID string) (bool, error)
	ListEmployees(ctx context.Context, domain, token string) ([]bitrix.User, error)

	BoundHandlers(ctx context.Context, domain, token, event string) ([]string, error)
	UnbindHandler(ctx context.Context, domain, token, event, handler string) error
	BindHandler(ctx context.Context, domain, token, event, handler string) error
}
