package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Iceeze/BitrixAssistant/internal/domain/dialog"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
)

func (e *Engine) dealTitle(ctx context.Context, sess *dialog.Session, text string) {
	if text == "" {
		e.reply(ctx, sess.ChatID, "❌ Название не может быть пустым. Введите снова:")
		return
	}
	if utf8.RuneCountInString(text) > 255 {
		e.reply(ctx, sess.ChatID, "❌ Слишком длинное название. Максимум 255 символов. Введите снова:")
		return
	}
	sess.Fields["title"] = text
	sess.State = dialog.StateDealAddress
	e.reply(ctx, sess.ChatID, "Введите адрес:")
}

func (e *Engine) dealAddress(ctx context.Context, sess *dialog.Session, text string) {
	if text == "" {
		e.reply(ctx, sess.ChatID, "❌ Адрес не может быть пустым. Введите снова:")
		return
	}
	sub, ok := e.subscriberFor(ctx, sess.ChatID)
	if !ok {
		return
	}

	sess.Fields["address"] = text
	sess.State = dialog.StateDealStage

	prompt := "Введите ID стадии сделки (или 'нет' чтобы пропустить):"
	if list := e.stageList(ctx, sub); list != "" {
		prompt = list + "\n" + prompt
	}
	e.reply(ctx, sess.ChatID, prompt)
}

// stageList renders the available deal stages, or empty when they
// cannot be fetched.
func (e *Engine) stageList(ctx context.Context, sub *subscriber.Subscriber) string {
	stages, err := e.portal.DealStages(ctx, sub.Domain, sub.AccessToken)
	if err != nil {
		e.logger.Error("fetch deal stages failed", "domain", sub.Domain, "error", err)
		return ""
	}
	if len(stages) == 0 {
		return "❗ Стадии сделок не найдены."
	}
	var b strings.Builder
	b.WriteString("📊 Доступные стадии сделок:\n")
	for _, s := range stages {
		fmt.Fprintf(&b, "%s (ID: %s)\n", s.Name, s.StatusID)
	}
	return b.String()
}

func (e *Engine) dealStage(ctx context.Context, sess *dialog.Session, text string) {
	sub, ok := e.subscriberFor(ctx, sess.ChatID)
	if !ok {
		return
	}

	if !skipped(text) {
		stages, err := e.portal.DealStages(ctx, sub.Domain, sub.AccessToken)
		if err != nil {
			e.reply(ctx, sess.ChatID, fmt.Sprintf("❌ Ошибка проверки стадии: %v", err))
			return
		}
		known := false
		for _, s := range stages {
			if s.StatusID == text {
				known = true
				break
			}
		}
		if !known {
			e.reply(ctx, sess.ChatID, "❌ Неверный ID стадии. Введите корректный ID или 'нет':")
			return
		}
		sess.Fields["stage_id"] = text
	}

	defer e.sessions.Clear(sess.ChatID)

	fields := map[string]string{
		"TITLE":          sess.Fields["title"],
		"COMMENTS":       sess.Fields["address"],
		"ASSIGNED_BY_ID": fmt.Sprintf("%d", sub.UserID),
	}
	if id, ok := sess.Fields["stage_id"]; ok {
		fields["STAGE_ID"] = id
	}

	dealID, err := e.portal.AddDeal(ctx, sub.Domain, sub.AccessToken, fields)
	if err != nil {
		e.logger.Error("deal creation failed", "chat_id", sess.ChatID, "error", err)
		e.reply(ctx, sess.ChatID, fmt.Sprintf("❌ Ошибка при создании сделки: %v", err))
		return
	}
	e.reply(ctx, sess.ChatID, fmt.Sprintf("✅ Сделка создана! ID: %s", dealID))
}
