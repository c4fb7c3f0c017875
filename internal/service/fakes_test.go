package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Iceeze/BitrixAssistant/internal/adapter/bitrix"
	"github.com/Iceeze/BitrixAssistant/internal/domain"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/port/chat"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory SubscriberStore and PreferenceStore.
type fakeStore struct {
	mu    sync.Mutex
	subs  map[int64]*subscriber.Subscriber
	prefs map[int64]*subscriber.Preferences

	getCalls int
	putCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:  make(map[int64]*subscriber.Subscriber),
		prefs: make(map[int64]*subscriber.Preferences),
	}
}

func (s *fakeStore) Get(_ context.Context, chatID int64) (*subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	sub, ok := s.subs[chatID]
	if !ok {
		return nil, fmt.Errorf("chat %d: %w", chatID, domain.ErrNotFound)
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeStore) Put(_ context.Context, sub *subscriber.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	cp := *sub
	s.subs[sub.ChatID] = &cp
	return nil
}

func (s *fakeStore) Delete(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, chatID)
	return nil
}

func (s *fakeStore) ListByMember(_ context.Context, memberID string) ([]*subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*subscriber.Subscriber
	for _, sub := range s.subs {
		if sub.MemberID == memberID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPreferences(_ context.Context, chatID int64) (*subscriber.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[chatID]
	if !ok {
		p = subscriber.DefaultPreferences(chatID)
		s.prefs[chatID] = p
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) TogglePreference(_ context.Context, chatID int64, flag subscriber.PrefFlag) (*subscriber.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[chatID]
	if !ok {
		p = subscriber.DefaultPreferences(chatID)
		s.prefs[chatID] = p
	}
	p.Toggle(flag)
	cp := *p
	return &cp, nil
}

// fakeSender records outbound chat traffic.
type fakeSender struct {
	mu       sync.Mutex
	messages []chat.Message
	edits    []string
	answers  []string
	deletes  int
	sendErr  error
}

func (s *fakeSender) Send(_ context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeSender) EditText(_ context.Context, _ int64, _ int64, text string, _ [][]chat.Button) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, text)
	return nil
}

func (s *fakeSender) DeleteMessage(_ context.Context, _ int64, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	return nil
}

func (s *fakeSender) AnswerCallback(_ context.Context, _ string, text string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, text)
	return nil
}

func (s *fakeSender) sent() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *fakeSender) lastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1].Text
}

// fakePortal implements Portal through overridable function fields.
// Unset fields return zero values.
type fakePortal struct {
	mu sync.Mutex

	refreshCalls int

	exchangeCode  func(domain, code string) (*bitrix.TokenGrant, error)
	refreshToken  func(refreshToken string) (*bitrix.TokenGrant, error)
	profile       func(domain, token string) (*bitrix.Profile, error)
	getTask       func(taskID string) (*bitrix.Task, error)
	listTasks     func() ([]bitrix.TaskSummary, error)
	taskHistory   func(taskID string) ([]bitrix.HistoryEntry, error)
	addTask       func(fields map[string]string) (string, error)
	updateTask    func(taskID string, fields map[string]string) error
	getComment    func(taskID, commentID string) (*bitrix.Comment, error)
	addComment    func(taskID, authorID, text string) error
	getDeal       func(dealID string) (*bitrix.Deal, error)
	listDeals     func(assignedID string) ([]bitrix.Deal, error)
	addDeal       func(fields map[string]string) (string, error)
	dealStages    func() ([]bitrix.Stage, error)
	userName      func(userID string) (string, error)
	userExists    func(userID string) (bool, error)
	listEmployees func() ([]bitrix.User, error)
	boundHandlers func(event string) ([]string, error)
	unbindHandler func(event, handler string) error
	bindHandler   func(event, handler string) error
}

func (p *fakePortal) ExchangeCode(_ context.Context, domain, code string) (*bitrix.TokenGrant, error) {
	if p.exchangeCode != nil {
		return p.exchangeCode(domain, code)
	}
	return &bitrix.TokenGrant{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600}, nil
}

func (p *fakePortal) RefreshToken(_ context.Context, refreshToken string) (*bitrix.TokenGrant, error) {
	p.mu.Lock()
	p.refreshCalls++
	p.mu.Unlock()
	if p.refreshToken != nil {
		return p.refreshToken(refreshToken)
	}
	return &bitrix.TokenGrant{AccessToken: "at2", RefreshToken: "rt2", ExpiresIn: 3600}, nil
}

func (p *fakePortal) refreshCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

func (p *fakePortal) Profile(_ context.Context, domain, token string) (*bitrix.Profile, error) {
	if p.profile != nil {
		return p.profile(domain, token)
	}
	return &bitrix.Profile{ID: 15, Name: "Анна Петрова"}, nil
}

func (p *fakePortal) GetTask(_ context.Context, _, _, taskID string) (*bitrix.Task, error) {
	if p.getTask != nil {
		return p.getTask(taskID)
	}
	return &bitrix.Task{ID: taskID}, nil
}

func (p *fakePortal) ListTasks(_ context.Context, _, _ string) ([]bitrix.TaskSummary, error) {
	if p.listTasks != nil {
		return p.listTasks()
	}
	return nil, nil
}

func (p *fakePortal) TaskHistory(_ context.Context, _, _, taskID string) ([]bitrix.HistoryEntry, error) {
	if p.taskHistory != nil {
		return p.taskHistory(taskID)
	}
	return nil, nil
}

func (p *fakePortal) AddTask(_ context.Context, _, _ string, fields map[string]string) (string, error) {
	if p.addTask != nil {
		return p.addTask(fields)
	}
	return "1", nil
}

func (p *fakePortal) UpdateTask(_ context.Context, _, _, taskID string, fields map[string]string) error {
	if p.updateTask != nil {
		return p.updateTask(taskID, fields)
	}
	return nil
}

func (p *fakePortal) GetComment(_ context.Context, _, _, taskID, commentID string) (*bitrix.Comment, error) {
	if p.getComment != nil {
		return p.getComment(taskID, commentID)
	}
	return &bitrix.Comment{ID: commentID}, nil
}

func (p *fakePortal) AddComment(_ context.Context, _, _, taskID, authorID, text string) error {
	if p.addComment != nil {
		return p.addComment(taskID, authorID, text)
	}
	return nil
}

func (p *fakePortal) GetDeal(_ context.Context, _, _, dealID string) (*bitrix.Deal, error) {
	if p.getDeal != nil {
		return p.getDeal(dealID)
	}
	return &bitrix.Deal{ID: dealID}, nil
}

func (p *fakePortal) ListDeals(_ context.Context, _, _, assignedID string) ([]bitrix.Deal, error) {
	if p.listDeals != nil {
		return p.listDeals(assignedID)
	}
	return nil, nil
}

func (p *fakePortal) AddDeal(_ context.Context, _, _ string, fields map[string]string) (string, error) {
	if p.addDeal != nil {
		return p.addDeal(fields)
	}
	return "1", nil
}

func (p *fakePortal) DealStages(_ context.Context, _, _ string) ([]bitrix.Stage, error) {
	if p.dealStages != nil {
		return p.dealStages()
	}
	return nil, nil
}

func (p *fakePortal) UserName(_ context.Context, _, _, userID string) (string, error) {
	if p.userName != nil {
		return p.userName(userID)
	}
	return "", nil
}

func (p *fakePortal) UserExists(_ context.Context, _, _, userID string) (bool, error) {
	if p.userExists != nil {
		return p.userExists(userID)
	}
	return true, nil
}

func (p *fakePortal) ListEmployees(_ context.Context, _, _ string) ([]bitrix.User, error) {
	if p.listEmployees != nil {
		return p.listEmployees()
	}
	return nil, nil
}

func (p *fakePortal) BoundHandlers(_ context.Context, _, _, event string) ([]string, error) {
	if p.boundHandlers != nil {
		return p.boundHandlers(event)
	}
	return nil, nil
}

func (p *fakePortal) UnbindHandler(_ context.Context, _, _, event, handler string) error {
	if p.unbindHandler != nil {
		return p.unbindHandler(event, handler)
	}
	return nil
}

func (p *fakePortal) BindHandler(_ context.Context, _, _, event, handler string) error {
	if p.bindHandler != nil {
		return p.bindHandler(event, handler)
	}
	return nil
}

// fakeCache is a trivial map-backed cache.Cache.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// testSubscriber returns a valid, unexpired subscriber.
func testSubscriber(chatID int64) *subscriber.Subscriber {
	return &subscriber.Subscriber{
		ChatID:       chatID,
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour),
		Domain:       "acme.bitrix24.ru",
		MemberID:     "m1",
		UserID:       15,
		UserName:     "Анна Петрова",
	}
}
