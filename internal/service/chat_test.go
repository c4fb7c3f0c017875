package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Iceeze/BitrixAssistant/internal/adapter/bitrix"
	"github.com/Iceeze/BitrixAssistant/internal/adapter/telegram"
	"github.com/Iceeze/BitrixAssistant/internal/domain/dialog"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
)

type chatFixture struct {
	store  *fakeStore
	portal *fakePortal
	sender *fakeSender
	chat   *Chat
}

func newChatFixture(portal *fakePortal) *chatFixture {
	store := newFakeStore()
	sender := &fakeSender{}
	logger := discardLogger()
	registry := NewRegistry(store, logger)
	registration := NewRegistration(portal, "https://relay.example.com", logger)
	oauth := NewOAuth(portal, registry, registration, sender,
		"app.client", "corp.bitrix24.ru", "https://relay.example.com/callback", logger)
	prefs := NewPreferences(store, newFakeCache(), time.Minute, logger)
	engine := NewEngine(dialog.NewStore(), portal, registry, sender, "corp.bitrix24.ru", logger)
	c := NewChat(registry, oauth, prefs, engine, portal, sender, logger)
	return &chatFixture{store: store, portal: portal, sender: sender, chat: c}
}

func textUpdate(chatID int64, text string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		MessageID: 1,
		Chat:      telegram.Chat{ID: chatID},
		Text:      text,
	}}
}

func callbackUpdate(chatID int64, data string) telegram.Update {
	return telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:   "cb",
		Data: data,
		Message: &telegram.Message{
			MessageID: 7,
			Chat:      telegram.Chat{ID: chatID},
		},
	}}
}

func TestStartSendsAuthorizeLink(t *testing.T) {
	f := newChatFixture(&fakePortal{})
	f.chat.HandleUpdate(context.Background(), textUpdate(1, "/start"))

	got := f.sender.lastText()
	if !strings.HasPrefix(got, "Добро пожаловать!") {
		t.Fatalf("greeting = %q", got)
	}
	for _, want := range []string{
		"https://corp.bitrix24.ru/oauth/authorize/",
		"client_id=app.client",
		"state=1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestCommandsRequireAuthorization(t *testing.T) {
	f := newChatFixture(&fakePortal{})
	for _, cmd := range []string{"/task", "/comment", "/task_history", "/tasks", "/deals", "/employees", "/settings"} {
		f.chat.HandleUpdate(context.Background(), textUpdate(1, cmd))
		if got := f.sender.lastText(); got != authRequiredNotice {
			t.Errorf("%s: reply = %q", cmd, got)
		}
	}
}

func TestDealCommandRequiresAdmin(t *testing.T) {
	f := newChatFixture(&fakePortal{})
	_ = f.store.Put(context.Background(), testSubscriber(1))

	f.chat.HandleUpdate(context.Background(), textUpdate(1, "/deal"))
	if got := f.sender.lastText(); got != "❗ Требуются права администратора. Авторизуйтесь через /start" {
		t.Fatalf("reply = %q", got)
	}

	admin := testSubscriber(2)
	admin.IsAdmin = true
	_ = f.store.Put(context.Background(), admin)
	f.chat.HandleUpdate(context.Background(), textUpdate(2, "/deal"))
	if got := f.sender.lastText(); !strings.Contains(got, "Введите название сделки") {
		t.Fatalf("admin reply = %q", got)
	}
}

func TestCommandStartsDialogAndRoutesInput(t *testing.T) {
	var gotAuthor, gotText string
	portal := &fakePortal{
		addComment: func(taskID, authorID, text string) error {
			gotAuthor, gotText = authorID, text
			return nil
		},
	}
	f := newChatFixture(portal)
	_ = f.store.Put(context.Background(), testSubscriber(1))
	ctx := context.Background()

	f.chat.HandleUpdate(ctx, textUpdate(1, "/comment"))
	if got := f.sender.lastText(); !strings.Contains(got, "Введите ID задачи") {
		t.Fatalf("prompt = %q", got)
	}
	f.chat.HandleUpdate(ctx, textUpdate(1, "42"))
	f.chat.HandleUpdate(ctx, textUpdate(1, "готово"))

	if got := f.sender.lastText(); got != "💬 Комментарий добавлен к задаче 42" {
		t.Fatalf("result = %q", got)
	}
	if gotAuthor != "15" || gotText != "готово" {
		t.Errorf("comment = author %q text %q", gotAuthor, gotText)
	}
}

func TestCancelOnlyConfirmsActiveDialog(t *testing.T) {
	f := newChatFixture(&fakePortal{})
	_ = f.store.Put(context.Background(), testSubscriber(1))
	ctx := context.Background()

	f.chat.HandleUpdate(ctx, textUpdate(1, "/cancel"))
	if n := len(f.sender.sent()); n != 0 {
		t.Fatalf("idle cancel sent %d messages", n)
	}

	f.chat.HandleUpdate(ctx, textUpdate(1, "/task"))
	f.chat.HandleUpdate(ctx, textUpdate(1, "/cancel"))
	if got := f.sender.lastText(); got != "❌ Действие отменено." {
		t.Fatalf("reply = %q", got)
	}
}

func TestSettingsKeyboardAndToggle(t *testing.T) {
	f := newChatFixture(&fakePortal{})
	_ = f.store.Put(context.Background(), testSubscriber(1))
	ctx := context.Background()

	f.chat.HandleUpdate(ctx, textUpdate(1, "/settings"))
	msgs := f.sender.sent()
	menu := msgs[len(msgs)-1]
	if menu.Text != "⚙️ Настройки уведомлений:\nВыберите тип уведомлений для настройки:" {
		t.Fatalf("menu text = %q", menu.Text)
	}
	if len(menu.Keyboard) != len(subscriber.AllFlags) {
		t.Fatalf("keyboard rows = %d", len(menu.Keyboard))
	}
	for _, row := range menu.Keyboard {
		if !strings.Contains(row[0].Text, "🟢") {
			t.Errorf("default flag not enabled: %q", row[0].Text)
		}
	}

	f.chat.HandleUpdate(ctx, callbackUpdate(1, "toggle_comments"))
	if f.sender.deletes != 1 {
		t.Errorf("old menu not deleted, deletes = %d", f.sender.deletes)
	}
	msgs = f.sender.sent()
	redrawn := msgs[len(msgs)-1]
	var commentsRow string
	for _, row := range redrawn.Keyboard {
		if row[0].Data == "toggle_comments" {
			commentsRow = row[0].Text
		}
	}
	if !strings.Contains(commentsRow, "🔴") {
		t.Errorf("toggled flag still enabled: %q", commentsRow)
	}
	if len(f.sender.answers) != 1 {
		t.Errorf("answers = %v", f.sender.answers)
	}
}

func TestTasksCommandListsTasks(t *testing.T) {
	portal := &fakePortal{
		listTasks: func() ([]bitrix.TaskSummary, error) {
			return []bitrix.TaskSummary{
				{ID: "5", Title: "Fix login"},
				{ID: "6", Title: ""},
			}, nil
		},
	}
	f := newChatFixture(portal)
	_ = f.store.Put(context.Background(), testSubscriber(1))

	f.chat.HandleUpdate(context.Background(), textUpdate(1, "/tasks"))
	got := f.sender.lastText()
	for _, want := range []string{
		"📋 Список задач:",
		"corp.bitrix24.ru/company/personal/user/15/tasks/task/view/5/",
		"📌 Название: Fix login",
		"📌 Название: Без названия",
		"Показано 2 задач.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestTasksCommandEmpty(t *testing.T) {
	portal := &fakePortal{
		listTasks: func() ([]bitrix.TaskSummary, error) { return nil, nil },
	}
	f := newChatFixture(portal)
	_ = f.store.Put(context.Background(), testSubscriber(1))

	f.chat.HandleUpdate(context.Background(), textUpdate(1, "/tasks"))
	if got := f.sender.lastText(); got != "📭 У вас нет задач." {
		t.Fatalf("reply = %q", got)
	}
}

func TestDealsCommandFiltersByRole(t *testing.T) {
	var gotAssigned []string
	portal := &fakePortal{
		listDeals: func(assignedID string) ([]bitrix.Deal, error) {
			gotAssigned = append(gotAssigned, assignedID)
			return []bitrix.Deal{{ID: "9", Title: "ЖК Восход", StageID: "WON"}}, nil
		},
		dealStages: func() ([]bitrix.Stage, error) {
			return []bitrix.Stage{{StatusID: "WON", Name: "Сделка заключена"}}, nil
		},
	}
	f := newChatFixture(portal)
	_ = f.store.Put(context.Background(), testSubscriber(1))
	admin := testSubscriber(2)
	admin.IsAdmin = true
	_ = f.store.Put(context.Background(), admin)
	ctx := context.Background()

	f.chat.HandleUpdate(ctx, textUpdate(1, "/deals"))
	f.chat.HandleUpdate(ctx, textUpdate(2, "/deals"))

	if len(gotAssigned) != 2 || gotAssigned[0] != "15" || gotAssigned[1] != "" {
		t.Fatalf("assigned filters = %v", gotAssigned)
	}
	got := f.sender.lastText()
	for _, want := range []string{"Сделка №9", "ЖК Восход", "📌 Стадия: Сделка заключена"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestEmployeesCommandChunksOutput(t *testing.T) {
	users := make([]bitrix.User, 25)
	for i := range users {
		users[i] = bitrix.User{ID: "1", Name: "Иван", LastName: "Иванов"}
	}
	portal := &fakePortal{
		listEmployees: func() ([]bitrix.User, error) { return users, nil },
	}
	f := newChatFixture(portal)
	_ = f.store.Put(context.Background(), testSubscriber(1))

	f.chat.HandleUpdate(context.Background(), textUpdate(1, "/employees"))
	msgs := f.sender.sent()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2 chunks", len(msgs))
	}
	if !strings.HasPrefix(msgs[0].Text, "Список сотрудников:") {
		t.Errorf("first chunk = %q", msgs[0].Text)
	}
	if !strings.Contains(msgs[1].Text, "👤 Иван Иванов (ID: 1)") {
		t.Errorf("second chunk = %q", msgs[1].Text)
	}
}

func TestUnknownCallbackStopsSpinner(t *testing.T) {
	f := newChatFixture(&fakePortal{})
	f.chat.HandleUpdate(context.Background(), callbackUpdate(1, "bogus"))
	if len(f.sender.answers) != 1 {
		t.Fatalf("answers = %v", f.sender.answers)
	}
	if n := len(f.sender.sent()); n != 0 {
		t.Errorf("unexpected messages: %d", n)
	}
}
