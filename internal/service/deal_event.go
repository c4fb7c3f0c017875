package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Iceeze/BitrixAssistant/internal/domain/event"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/webform"
)

// dealURL links to a deal in the portal web UI.
func dealURL(domain, dealID string) string {
	return fmt.Sprintf("https://%s/crm/deal/details/%s/", domain, dealID)
}

// renderDeal builds the notification text for a deal event. Unlike
// tasks, a deal without a responsible notifies nobody.
func (r *Router) renderDeal(ctx context.Context, ev event.Inbound, sub *subscriber.Subscriber) (string, error) {
	if ev.Type == "oncrmdealdelete" {
		return "", nil
	}

	dealID := webform.Lookup(ev.Payload, "data", "FIELDS", "ID")
	if dealID == "" {
		return "", fmt.Errorf("deal event %q without deal id", ev.Type)
	}

	deal, err := r.portal.GetDeal(ctx, sub.Domain, sub.AccessToken, dealID)
	if err != nil {
		return "", fmt.Errorf("fetch deal %s: %w", dealID, err)
	}
	if deal.AssignedByID == "" {
		return "", nil
	}
	if strconv.FormatInt(sub.UserID, 10) != deal.AssignedByID && !sub.IsAdmin {
		return "", nil
	}

	responsibleName := r.userNameOr(ctx, sub, deal.AssignedByID, "Не указан")
	changedByName := r.userNameOr(ctx, sub, deal.ModifyByID, "Неизвестно")
	stage := r.stageName(ctx, sub, deal.StageID)

	title := deal.Title
	if title == "" {
		title = "Без названия"
	}
	address := deal.Comments
	if address == "" {
		address = "Не указано"
	}

	header := fmt.Sprintf("Сделка <b><a href='%s'>№%s</a></b>", dealURL(sub.Domain, dealID), dealID)
	body := fmt.Sprintf(
		"🏢 Название: %s\n"+
			"📍 Адрес: %s\n"+
			"📈 Стадия: %s\n"+
			"👤 Ответственный: %s",
		title, address, stage, responsibleName)

	switch ev.Type {
	case "oncrmdealadd":
		return header + " - 🆕Создана🆕\n" + body, nil
	case "oncrmdealupdate":
		return header + " - 🔄Изменена🔄\n" + body +
			fmt.Sprintf("\n✍️ Изменено: %s", changedByName), nil
	default:
		return "", nil
	}
}

// stageName resolves a stage id to its pipeline name, falling back to
// the raw id when the lookup fails or the stage is unknown.
func (r *Router) stageName(ctx context.Context, sub *subscriber.Subscriber, stageID string) string {
	stages, err := r.portal.DealStages(ctx, sub.Domain, sub.AccessToken)
	if err != nil {
		r.logger.Error("fetch deal stages failed", "domain", sub.Domain, "error", err)
		return stageID
	}
	for _, s := range stages {
		if s.StatusID == stageID {
			return s.Name
		}
	}
	return stageID
}
