package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Iceeze/BitrixAssistant/internal/adapter/telegram"
	"github.com/Iceeze/BitrixAssistant/internal/domain/dialog"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/port/chat"
)

const helpText = `📚 Доступные команды:
/start - Авторизация в Bitrix24
/tasks - Вывести список задач
/task - Создать задачу
/edit_task - Редактировать задачу
/comment - Добавить комментарий к задаче
/deal - Создать сделку (❗Только для админов❗)
/deals - Показать список сделок
/employees - Получить список сотрудников
/task_history - Получить историю изменений задачи
/settings - Настройка уведомлений

/help - Справка о командах`

// settingLabels are the toggle button captions, in subscriber.AllFlags
// order.
var settingLabels = map[subscriber.PrefFlag]string{
	subscriber.PrefNewDeals:      "Новые сделки",
	subscriber.PrefDealUpdates:   "Изменения сделок",
	subscriber.PrefTaskCreations: "Создание задач",
	subscriber.PrefTaskUpdates:   "Изменения задач",
	subscriber.PrefComments:      "Комментарии",
}

// Chat handles the bot's inbound side: slash commands, dialog input,
// and inline keyboard callbacks. It implements telegram.Handler.
type Chat struct {
	registry *Registry
	oauth    *OAuth
	prefs    *Preferences
	engine   *Engine
	portal   Portal
	sender   chat.Sender
	logger   *slog.Logger
}

// NewChat creates the chat command service.
func NewChat(registry *Registry, oauth *OAuth, prefs *Preferences, engine *Engine, portal Portal, sender chat.Sender, logger *slog.Logger) *Chat {
	return &Chat{
		registry: registry,
		oauth:    oauth,
		prefs:    prefs,
		engine:   engine,
		portal:   portal,
		sender:   sender,
		logger:   logger,
	}
}

// HandleUpdate dispatches one incoming update.
func (c *Chat) HandleUpdate(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.CallbackQuery != nil:
		c.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.Text != "":
		c.handleMessage(ctx, upd.Message)
	}
}

func (c *Chat) handleMessage(ctx context.Context, m *telegram.Message) {
	chatID := m.Chat.ID
	text := strings.TrimSpace(m.Text)

	if strings.HasPrefix(text, "/") {
		c.handleCommand(ctx, chatID, strings.Fields(text)[0])
		return
	}
	c.engine.HandleInput(ctx, chatID, text)
}

func (c *Chat) handleCommand(ctx context.Context, chatID int64, command string) {
	switch command {
	case "/start":
		c.reply(ctx, chatID, fmt.Sprintf(
			"Добро пожаловать!\n🔑 Для начала работы BitrixAssistant пройдите авторизацию: %s",
			c.oauth.AuthorizeURL(chatID)))

	case "/help":
		c.reply(ctx, chatID, helpText)

	case "/cancel":
		if c.engine.Cancel(chatID) {
			c.reply(ctx, chatID, "❌ Действие отменено.")
		}

	case "/task":
		if _, ok := c.authorized(ctx, chatID); !ok {
			return
		}
		c.engine.Start(chatID, dialog.FlowTaskCreate, dialog.StateTaskTitle)
		c.reply(ctx, chatID, "Вы можете ввести /cancel для отмены.\n\nВведите название задачи:")

	case "/deal":
		sub, err := c.registry.Get(ctx, chatID)
		if err != nil || !sub.IsAdmin {
			c.reply(ctx, chatID, "❗ Требуются права администратора. Авторизуйтесь через /start")
			return
		}
		c.engine.Start(chatID, dialog.FlowDealCreate, dialog.StateDealTitle)
		c.reply(ctx, chatID, "Вы можете ввести /cancel для отмены.\n\nВведите название сделки (Название ЖК):")

	case "/comment":
		if _, ok := c.authorized(ctx, chatID); !ok {
			return
		}
		c.engine.Start(chatID, dialog.FlowComment, dialog.StateCommentTaskID)
		c.reply(ctx, chatID, "Вы можете ввести /cancel для отмены.\n\nВведите ID задачи:")

	case "/edit_task":
		// Authorization is checked when the task id arrives.
		c.engine.Start(chatID, dialog.FlowTaskEdit, dialog.StateEditTaskID)
		c.reply(ctx, chatID, "Введите ID задачи для редактирования:")

	case "/task_history":
		if _, ok := c.authorized(ctx, chatID); !ok {
			return
		}
		c.engine.Start(chatID, dialog.FlowTaskHistory, dialog.StateHistoryTaskID)
		c.reply(ctx, chatID, "Введите, пожалуйста, ID задачи, историю которой хотите увидеть:")

	case "/tasks":
		if sub, ok := c.authorized(ctx, chatID); ok {
			c.listTasks(ctx, sub)
		}

	case "/deals":
		if sub, ok := c.authorized(ctx, chatID); ok {
			c.listDeals(ctx, sub)
		}

	case "/employees":
		if sub, ok := c.authorized(ctx, chatID); ok {
			c.listEmployees(ctx, sub)
		}

	case "/settings":
		if _, ok := c.authorized(ctx, chatID); ok {
			c.showSettings(ctx, chatID)
		}
	}
}

func (c *Chat) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	if flag, ok := strings.CutPrefix(cb.Data, "toggle_"); ok {
		c.togglePreference(ctx, chatID, cb, subscriber.PrefFlag(flag))
		return
	}
	if c.engine.HandleCallback(ctx, chatID, cb.Message.MessageID, cb.ID, cb.Data) {
		return
	}
	// Stale or unknown button: just stop the spinner.
	if err := c.sender.AnswerCallback(ctx, cb.ID, "", false); err != nil {
		c.logger.Error("callback answer failed", "callback_id", cb.ID, "error", err)
	}
}

// togglePreference flips the flag and redraws the settings menu.
func (c *Chat) togglePreference(ctx context.Context, chatID int64, cb *telegram.CallbackQuery, flag subscriber.PrefFlag) {
	if _, err := c.prefs.Toggle(ctx, chatID, flag); err != nil {
		c.logger.Error("preference toggle failed", "chat_id", chatID, "flag", flag, "error", err)
	}
	if err := c.sender.DeleteMessage(ctx, chatID, cb.Message.MessageID); err != nil {
		c.logger.Error("settings menu delete failed", "chat_id", chatID, "error", err)
	}
	c.showSettings(ctx, chatID)
	if err := c.sender.AnswerCallback(ctx, cb.ID, "", false); err != nil {
		c.logger.Error("callback answer failed", "callback_id", cb.ID, "error", err)
	}
}

func (c *Chat) showSettings(ctx context.Context, chatID int64) {
	prefs, err := c.prefs.Get(ctx, chatID)
	if err != nil {
		c.logger.Error("load preferences failed", "chat_id", chatID, "error", err)
		return
	}

	keyboard := make([][]chat.Button, 0, len(subscriber.AllFlags))
	for _, flag := range subscriber.AllFlags {
		state := "🟢"
		if !prefs.Allows(flag) {
			state = "🔴"
		}
		keyboard = append(keyboard, []chat.Button{{
			Text: fmt.Sprintf("%s %s", settingLabels[flag], state),
			Data: "toggle_" + string(flag),
		}})
	}

	c.send(ctx, chat.Message{
		ChatID:   chatID,
		Text:     "⚙️ Настройки уведомлений:\nВыберите тип уведомлений для настройки:",
		Keyboard: keyboard,
	})
}

func (c *Chat) listTasks(ctx context.Context, sub *subscriber.Subscriber) {
	tasks, err := c.portal.ListTasks(ctx, sub.Domain, sub.AccessToken)
	if err != nil {
		c.logger.Error("list tasks failed", "chat_id", sub.ChatID, "error", err)
		c.reply(ctx, sub.ChatID, "⚠️ Ошибка при получении задач.")
		return
	}
	if len(tasks) == 0 {
		c.reply(ctx, sub.ChatID, "📭 У вас нет задач.")
		return
	}

	lines := []string{"📋 Список задач:\n"}
	for _, t := range tasks {
		title := t.Title
		if title == "" {
			title = "Без названия"
		}
		lines = append(lines,
			fmt.Sprintf("Задача <b><a href='%s'>№%s</a></b>",
				taskViewURL(c.oauth.homeDomain, sub.UserID, t.ID), t.ID),
			fmt.Sprintf("📌 Название: %s", title),
			"―――――――――――――――――――――")
	}
	lines = append(lines, fmt.Sprintf("\nПоказано %d задач.", len(tasks)))
	c.reply(ctx, sub.ChatID, strings.Join(lines, "\n"))
}

func (c *Chat) listDeals(ctx context.Context, sub *subscriber.Subscriber) {
	// Admins see every deal, others only their own.
	assignedID := ""
	if !sub.IsAdmin {
		assignedID = fmt.Sprintf("%d", sub.UserID)
	}

	deals, err := c.portal.ListDeals(ctx, sub.Domain, sub.AccessToken, assignedID)
	if err != nil {
		c.logger.Error("list deals failed", "chat_id", sub.ChatID, "error", err)
		c.reply(ctx, sub.ChatID, "⚠️ Ошибка вывода.")
		return
	}
	if len(deals) == 0 {
		c.reply(ctx, sub.ChatID, "📭 У вас нет сделок.")
		return
	}

	stageNames := make(map[string]string)
	if stages, err := c.portal.DealStages(ctx, sub.Domain, sub.AccessToken); err == nil {
		for _, s := range stages {
			stageNames[s.StatusID] = s.Name
		}
	}

	lines := []string{"🏢 Список сделок:\n"}
	for _, d := range deals {
		title := d.Title
		if title == "" {
			title = "Без названия"
		}
		stage := stageNames[d.StageID]
		if stage == "" {
			stage = d.StageID
		}
		lines = append(lines, fmt.Sprintf(
			"🔗 <b><a href='%s'>Сделка №%s</a></b>\n🏷 Название: %s\n📌 Стадия: %s\n―――――――――――――――――――――",
			dealURL(sub.Domain, d.ID), d.ID, title, stage))
	}
	lines = append(lines, fmt.Sprintf("\nПоказано %d сделок.", len(deals)))
	c.reply(ctx, sub.ChatID, strings.Join(lines, "\n"))
}

func (c *Chat) listEmployees(ctx context.Context, sub *subscriber.Subscriber) {
	users, err := c.portal.ListEmployees(ctx, sub.Domain, sub.AccessToken)
	if err != nil {
		c.logger.Error("list employees failed", "chat_id", sub.ChatID, "error", err)
		c.reply(ctx, sub.ChatID, fmt.Sprintf("⚠️ Ошибка при получении списка: %v", err))
		return
	}
	if len(users) == 0 {
		c.reply(ctx, sub.ChatID, "🤷 На портале нет сотрудников")
		return
	}

	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, fmt.Sprintf("👤 %s (ID: %s)", u.FullName(), u.ID))
	}

	const chunk = 20
	for i := 0; i < len(lines); i += chunk {
		end := min(i+chunk, len(lines))
		c.reply(ctx, sub.ChatID, "Список сотрудников:\n\n"+strings.Join(lines[i:end], "\n"))
	}
}

// authorized loads the chat's subscription, prompting for /start when
// there is none.
func (c *Chat) authorized(ctx context.Context, chatID int64) (*subscriber.Subscriber, bool) {
	sub, err := c.registry.Get(ctx, chatID)
	if err != nil {
		c.reply(ctx, chatID, authRequiredNotice)
		return nil, false
	}
	return sub, true
}

func (c *Chat) reply(ctx context.Context, chatID int64, text string) {
	c.send(ctx, chat.Message{ChatID: chatID, Text: text})
}

func (c *Chat) send(ctx context.Context, msg chat.Message) {
	if err := c.sender.Send(ctx, msg); err != nil {
		c.logger.Error("chat reply failed", "chat_id", msg.ChatID, "error", err)
	}
}
